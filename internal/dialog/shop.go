package dialog

import (
	"context"
	"fmt"
	"strings"

	"chatstore/internal/channel"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/orders"
	"chatstore/internal/validation"
)

// shopFlow is the customer side: browse the store, pick a product and
// order a quantity.
type shopFlow struct{ r *Router }

func (f *shopFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	switch verb {
	case "orders":
		return show(screenCustomerOrder, ""), nil
	case "store":
		if id == "" {
			if t.Store == nil {
				return Screen{}, ErrNotBrowsing
			}
			id = t.Store.ID
		}
		return show(screenStore, id), nil
	case "product":
		return show(screenStoreProduct, id), nil
	case "buy":
		productID, variantID, _ := strings.Cut(id, ":")
		return f.startBuy(ctx, t, productID, variantID)
	}
	return show(screenHome, ""), nil
}

func (f *shopFlow) startBuy(ctx context.Context, t *Turn, productID, variantID string) (Screen, error) {
	p, err := f.r.store.Products.Get(ctx, productID)
	if apperrors.Is(err, apperrors.ErrNotFound) || (err == nil && p.Status != models.ProductActive) {
		return Screen{}, ErrProductNotFound
	}
	if err != nil {
		return Screen{}, apperrors.Dependency("load product", err)
	}
	if t.Store == nil || t.Store.ID != p.MerchantID {
		store, err := f.r.loadStore(ctx, p.MerchantID)
		if err != nil {
			return Screen{}, err
		}
		t.Store = store
		t.Session.Set(models.PayloadStore, store.ID)
	}
	if !p.InStock {
		return Screen{}, orders.ErrOutOfStock
	}

	label := p.Name
	if variantID != "" {
		found := false
		for _, v := range p.Variants {
			if v.ID == variantID {
				label, found = p.Name+" ("+v.Label()+")", true
			}
		}
		if !found {
			return Screen{}, ErrProductNotFound
		}
	}
	step := models.AwaitingQuantity(p.ID)
	step.Field = variantID
	t.Session.Enter(step)
	return ask(fmt.Sprintf("How many %s would you like? (1-%d)", label, validation.MaxQuantity), cancelButton), nil
}

func (f *shopFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	if t.Session.Step.Kind != models.StepQuantity {
		t.Session.ClearStep()
		return show(screenHome, ""), nil
	}
	if t.Store == nil {
		return Screen{}, ErrStepTargetGone
	}
	qty, err := validation.ParseQuantity(t.Input)
	if err != nil {
		return Screen{}, err
	}
	line := orders.Line{ProductID: t.Session.Step.Ref, VariantID: t.Session.Step.Field, Quantity: qty}
	_, err = f.r.orders.Place(ctx, t.Store, t.Key, []orders.Line{line})
	if apperrors.Is(err, orders.ErrProductNotFound) {
		return Screen{}, ErrStepTargetGone
	}
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindValidation {
			// store closed or out of stock: retrying the quantity won't help
			t.Session.ClearStep()
			return ask(apperrors.MessageOf(err), channel.Button{ID: "shop:store:" + t.Store.ID, Title: "Back to store"}), nil
		}
		return Screen{}, err
	}
	// the order manager already sent the confirmation
	t.Session.ClearStep()
	return Screen{}, nil
}

func (f *shopFlow) cancel(ctx context.Context, t *Turn) error { return nil }
