package dialog

import (
	"context"
	"fmt"
	"log"
	"strings"

	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/validation"
)

const adminStoreListLimit = 10

// adminFlow is the platform team's store provisioning. Every entry
// point checks the admin allow-list.
type adminFlow struct{ r *Router }

func (f *adminFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	if !f.r.isAdmin(t.Key) {
		return Screen{}, ErrNotAdmin
	}
	switch verb {
	case "invite":
		t.Session.ClearStep()
		t.Session.Enter(models.AwaitingInviteName())
		return ask("What's the new store called? Optionally add a handle: Store name | handle", cancelButton), nil
	case "revoke":
		t.Session.ClearStep()
		t.Session.Enter(models.AwaitingRevokeHandle())
		return ask("Send the admin handle of the store to revoke, e.g. @joesgrill_admin", cancelButton), nil
	case "stores":
		return f.listStores(ctx)
	}
	return show(screenAdmin, ""), nil
}

func (f *adminFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	if !f.r.isAdmin(t.Key) {
		t.Session.ClearStep()
		return Screen{}, ErrNotAdmin
	}
	switch t.Session.Step.Kind {
	case models.StepInviteName:
		name, handle, err := validation.ParseStoreName(t.Input)
		if err != nil {
			return Screen{}, err
		}
		t.Session.Set(models.PayloadInviteName, name)
		t.Session.Set(models.PayloadInviteHandle, handle)
		t.Session.Enter(models.AwaitingInvitePhone())
		return ask(fmt.Sprintf("What's the owner's phone number for %s?", name), cancelButton), nil
	case models.StepInvitePhone:
		phone, err := validation.ParsePhone(t.Input)
		if err != nil {
			return Screen{}, err
		}
		return f.invite(ctx, t, phone)
	case models.StepRevokeHandle:
		return f.revoke(ctx, t)
	}
	t.Session.ClearStep()
	return show(screenAdmin, ""), nil
}

// invite provisions an ONBOARDING store for phone, or reuses the one
// already waiting for it, and sends the owner invite.
func (f *adminFlow) invite(ctx context.Context, t *Turn, phone string) (Screen, error) {
	merchants := f.r.store.Merchants
	m, err := merchants.FindOnboardingByOwner(ctx, phone)
	reused := err == nil
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		m, err = f.provision(ctx, t, phone)
		if err != nil {
			return Screen{}, err
		}
	case err != nil:
		return Screen{}, apperrors.Dependency("find onboarding store", err)
	}

	inv, err := f.r.store.Invites.Refresh(ctx, m.ID, phone, t.Key)
	if err != nil {
		return Screen{}, apperrors.Dependency("create invite", err)
	}
	t.Session.ClearStep()

	text := fmt.Sprintf("👋 Welcome to %s! You've been invited to open your store @%s. Tap Accept to set it up.", f.r.platform.Name, m.Handle)
	sent := true
	if err := f.r.sendInvite(ctx, inv, text); err != nil {
		log.Printf("router: store invite to %s: %v", phone, err)
		sent = false
	}

	var b strings.Builder
	if reused {
		fmt.Fprintf(&b, "♻️ +%s already has a store waiting: @%s.", phone, m.Handle)
	} else {
		fmt.Fprintf(&b, "✅ Created @%s for +%s.", m.Handle, phone)
	}
	fmt.Fprintf(&b, "\nAdmin handle: @%s", m.AdminHandle)
	if sent {
		b.WriteString("\nInvite sent.")
	} else {
		b.WriteString("\nWe couldn't message the owner. Try the invite again later.")
	}
	return show(screenAdmin, "").with(b.String()), nil
}

func (f *adminFlow) provision(ctx context.Context, t *Turn, phone string) (*models.Merchant, error) {
	merchants := f.r.store.Merchants
	base := t.Session.Get(models.PayloadInviteHandle)
	if base == "" {
		base = Slugify(t.Session.Get(models.PayloadInviteName))
	}
	handle, err := UniqueHandle(ctx, base, merchants.HandleExists)
	if err != nil {
		return nil, apperrors.Dependency("pick handle", err)
	}
	adminHandle, err := UniqueHandle(ctx, handle+"_admin", merchants.AdminHandleExists)
	if err != nil {
		return nil, apperrors.Dependency("pick admin handle", err)
	}
	m := &models.Merchant{
		OwnerKey:    phone,
		Status:      models.MerchantOnboarding,
		Handle:      handle,
		AdminHandle: adminHandle,
		Locale:      f.r.platform.DefaultLocale,
	}
	m.ApplyDefaultHours()
	if err := merchants.Create(ctx, m); err != nil {
		return nil, apperrors.Dependency("create store", err)
	}
	log.Printf("router: admin %s provisioned @%s for %s", t.Key, handle, phone)
	return m, nil
}

func (f *adminFlow) revoke(ctx context.Context, t *Turn) (Screen, error) {
	handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t.Input), "@"))
	m, err := f.r.store.Merchants.GetByAdminHandle(ctx, handle)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return Screen{}, ErrUnknownAdminName
	}
	if err != nil {
		return Screen{}, apperrors.Dependency("find store", err)
	}
	owners, err := f.r.store.Owners.DeactivateAll(ctx, m.ID)
	if err != nil {
		return Screen{}, apperrors.Dependency("revoke owners", err)
	}
	invites, err := f.r.store.Invites.RevokePending(ctx, m.ID)
	if err != nil {
		return Screen{}, apperrors.Dependency("revoke invites", err)
	}
	t.Session.ClearStep()
	log.Printf("router: admin %s revoked @%s (%d owners, %d invites)", t.Key, m.Handle, owners, invites)
	return show(screenAdmin, "").with(fmt.Sprintf("🚫 Revoked @%s: %d owners removed, %d invites withdrawn.", m.Handle, owners, invites)), nil
}

func (f *adminFlow) listStores(ctx context.Context) (Screen, error) {
	stores, err := f.r.store.Merchants.List(ctx, adminStoreListLimit)
	if err != nil {
		return Screen{}, apperrors.Dependency("list stores", err)
	}
	if len(stores) == 0 {
		return show(screenAdmin, "").with("No stores yet."), nil
	}
	lines := make([]string, 0, len(stores))
	for _, m := range stores {
		lines = append(lines, fmt.Sprintf("@%s · %s · %s", m.Handle, m.DisplayName(), strings.ToLower(string(m.Status))))
	}
	return show(screenAdmin, "").with("🏬 Latest stores\n"+strings.Join(lines, "\n")), nil
}

func (f *adminFlow) cancel(ctx context.Context, t *Turn) error { return nil }
