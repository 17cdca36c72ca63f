package dialog

import (
	"context"
	"fmt"

	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
)

// inviteFlow answers the accept/decline prompt an invited phone receives.
type inviteFlow struct{ r *Router }

func (f *inviteFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	inv, err := f.r.store.Invites.Get(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return Screen{}, ErrInviteNotFound
	}
	if err != nil {
		return Screen{}, apperrors.Dependency("load invite", err)
	}
	if inv.Phone != t.Key {
		return Screen{}, ErrNotYourStore
	}

	switch verb {
	case "accept":
		return f.accept(ctx, t, inv)
	case "decline":
		ok, err := f.r.store.Invites.TransitionStatus(ctx, inv.ID, models.InvitePending, models.InviteDeclined)
		if err != nil {
			return Screen{}, apperrors.Dependency("decline invite", err)
		}
		if !ok {
			return Screen{}, ErrInviteUsed
		}
		return say("No problem, the invite has been declined."), nil
	}
	return show(screenHome, ""), nil
}

func (f *inviteFlow) accept(ctx context.Context, t *Turn, inv *models.OwnerInvite) (Screen, error) {
	m, err := f.r.loadStore(ctx, inv.MerchantID)
	if err != nil {
		return Screen{}, err
	}
	ok, err := f.r.store.Invites.TransitionStatus(ctx, inv.ID, models.InvitePending, models.InviteAccepted)
	if err != nil {
		return Screen{}, apperrors.Dependency("accept invite", err)
	}
	if !ok {
		return Screen{}, ErrInviteUsed
	}
	if err := f.r.store.Owners.Activate(ctx, m.ID, t.Key); err != nil {
		return Screen{}, apperrors.Dependency("add owner", err)
	}

	t.Session.ClearStep()
	t.Session.Mode = models.ModeMerchant
	t.Session.Payload = models.JSON{models.PayloadStore: m.ID}
	t.Merchant, t.Store = m, nil

	notice := fmt.Sprintf("🤝 You now manage @%s.", m.Handle)
	if m.Status == models.MerchantOnboarding {
		t.Session.Enter(models.AwaitingField(m.MissingField()))
		return Screen{Notice: notice, Prompt: ptr(onboardingPrompt(m))}, nil
	}
	return show(screenHome, "").with(notice), nil
}

func (f *inviteFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	t.Session.ClearStep()
	return show(screenHome, ""), nil
}

func (f *inviteFlow) cancel(ctx context.Context, t *Turn) error { return nil }
