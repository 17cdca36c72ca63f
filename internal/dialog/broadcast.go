package dialog

import (
	"context"
	"fmt"

	"chatstore/internal/channel"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/jobs"
	"chatstore/internal/models"
	"chatstore/internal/validation"
)

type broadcastFlow struct{ r *Router }

func (f *broadcastFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	switch verb {
	case "compose":
		t.Session.ClearStep()
		t.Session.Enter(models.ComposingBroadcast())
		return ask("📣 What would you like to tell your customers?", cancelButton), nil
	case "send":
		return f.send(ctx, t)
	case "cancel":
		t.Session.ClearStep()
		return show(screenHome, "").with("Broadcast discarded."), nil
	}
	return show(screenHome, ""), nil
}

func (f *broadcastFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	switch t.Session.Step.Kind {
	case models.StepBroadcastCompose:
		msg, err := validation.ParseMessage(t.Input)
		if err != nil {
			return Screen{}, err
		}
		audience, err := f.r.store.Customers.ListOptedIn(ctx, t.Merchant.ID)
		if err != nil {
			return Screen{}, apperrors.Dependency("count audience", err)
		}
		t.Session.Set(models.PayloadBroadcast, msg)
		t.Session.Enter(models.ConfirmBroadcast())
		return ask(fmt.Sprintf("Preview (%d customers):\n\n%s", len(audience), msg),
			channel.Button{ID: "broadcast:send", Title: "Send"},
			channel.Button{ID: "broadcast:cancel", Title: "Discard"},
		), nil
	case models.StepBroadcastConfirm:
		return Screen{}, ErrChooseAction
	}
	t.Session.ClearStep()
	return show(screenHome, ""), nil
}

func (f *broadcastFlow) send(ctx context.Context, t *Turn) (Screen, error) {
	msg := t.Session.Get(models.PayloadBroadcast)
	if t.Session.Step.Kind != models.StepBroadcastConfirm || msg == "" {
		return Screen{}, ErrNothingToSend
	}
	err := f.r.broadcasts.Start(ctx, t.Merchant, t.Key, msg)
	if apperrors.Is(err, jobs.ErrBroadcastRunning) {
		return Screen{}, err
	}
	if err != nil {
		return Screen{}, apperrors.Dependency("start broadcast", err)
	}
	t.Session.ClearStep()
	return show(screenHome, "").with("📤 Broadcast started. We'll message you when it's done."), nil
}

func (f *broadcastFlow) cancel(ctx context.Context, t *Turn) error { return nil }
