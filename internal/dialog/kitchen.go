package dialog

import (
	"context"
	"fmt"

	"chatstore/internal/templates"
)

// kitchenFlow is the merchant's order desk. Status changes go through
// the order manager; this flow only picks the order and reports back.
type kitchenFlow struct{ r *Router }

func (f *kitchenFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	merchantID := t.Merchant.ID
	switch verb {
	case "list":
		return show(screenKitchen, ""), nil
	case "view":
		return show(screenOrder, id), nil
	case "ready":
		o, changed, err := f.r.orders.MarkReady(ctx, id, merchantID)
		if err != nil {
			return Screen{}, err
		}
		if !changed {
			return show(screenKitchen, "").with(fmt.Sprintf("Order #%s is already marked ready.", o.Ref)), nil
		}
		return show(screenKitchen, "").with(fmt.Sprintf("✅ Order #%s is ready. The customer has been told.", o.Ref)), nil
	case "collected":
		s, err := f.r.orders.MarkCollected(ctx, id, merchantID)
		if err != nil {
			return Screen{}, err
		}
		notice := fmt.Sprintf("🎉 Order #%s collected.\nTotal: %s\nPlatform fee: %s\nYou earn: %s (paid out on %s)",
			s.Order.Ref, templates.Money(s.Order.Total), templates.Money(s.Fee), templates.Money(s.Earnings), f.r.platform.PayoutDay)
		return show(screenKitchen, "").with(notice), nil
	case "cancel":
		o, err := f.r.orders.Cancel(ctx, id, merchantID)
		if err != nil {
			return Screen{}, err
		}
		return show(screenKitchen, "").with(fmt.Sprintf("❌ Order #%s cancelled. The customer has been told.", o.Ref)), nil
	}
	return show(screenKitchen, ""), nil
}

func (f *kitchenFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	t.Session.ClearStep()
	return show(screenKitchen, ""), nil
}

func (f *kitchenFlow) cancel(ctx context.Context, t *Turn) error { return nil }
