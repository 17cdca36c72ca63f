package dialog

import (
	"context"
	"fmt"
	"strings"

	"chatstore/internal/channel"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/validation"
)

// inventoryFlow runs the add-product wizard (name, price, photo,
// preview) and the single-step product edits.
type inventoryFlow struct{ r *Router }

func (f *inventoryFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	switch verb {
	case "list":
		return show(screenInventory, ""), nil
	case "add":
		t.Session.Enter(models.AwaitingProductName())
		return ask("What's the product called?", cancelButton), nil
	case "view":
		return show(screenProduct, id), nil
	case "skip_image":
		return f.skipImage(ctx, t, id)
	}

	p, err := f.r.ownedProduct(ctx, t, id)
	if err != nil {
		return Screen{}, err
	}
	switch verb {
	case "price":
		t.Session.Enter(models.EditingPrice(p.ID))
		return ask(fmt.Sprintf("Send the new price for %s, e.g. 45.50", p.Name), cancelButton), nil
	case "variant":
		t.Session.Enter(models.AwaitingVariant(p.ID))
		return ask(fmt.Sprintf("Send the %s variant as: Size / Colour / SKU | price\ne.g. Large / Red | 55.00", p.Name), cancelButton), nil
	case "stock":
		p.InStock = !p.InStock
		if err := f.r.store.Products.Update(ctx, p); err != nil {
			return Screen{}, apperrors.Dependency("toggle stock", err)
		}
		notice := fmt.Sprintf("✅ %s is back in stock.", p.Name)
		if !p.InStock {
			notice = fmt.Sprintf("⛔ %s is marked out of stock.", p.Name)
		}
		return show(screenProduct, p.ID).with(notice), nil
	case "publish":
		return f.publish(ctx, t, p)
	case "delete":
		return ask(fmt.Sprintf("Delete %s? This can't be undone.", p.Name),
			channel.Button{ID: "inventory:confirm_delete:" + p.ID, Title: "Delete"},
			channel.Button{ID: "inventory:view:" + p.ID, Title: "Keep"},
		), nil
	case "confirm_delete":
		if err := f.r.store.Products.Delete(ctx, p.ID); err != nil {
			return Screen{}, apperrors.Dependency("delete product", err)
		}
		if t.Session.Step.Ref == p.ID {
			t.Session.ClearStep()
		}
		return show(screenInventory, "").with(fmt.Sprintf("🗑️ %s deleted.", p.Name)), nil
	}
	return show(screenInventory, ""), nil
}

func (f *inventoryFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	step := t.Session.Step
	if step.Kind == models.StepProductName {
		return f.createDraft(ctx, t)
	}

	p, err := f.stepProduct(ctx, t, step.Ref)
	if err != nil {
		return Screen{}, err
	}

	switch step.Kind {
	case models.StepProductPrice:
		price, err := validation.ParsePrice(t.Input)
		if err != nil {
			return Screen{}, err
		}
		p.Price = price
		if err := f.r.store.Products.Update(ctx, p); err != nil {
			return Screen{}, apperrors.Dependency("save price", err)
		}
		t.Session.Enter(models.AwaitingImage(p.ID))
		return ask("📷 Send a photo of the product, or tap Skip.",
			channel.Button{ID: "inventory:skip_image:" + p.ID, Title: "Skip"},
			cancelButton,
		), nil

	case models.StepProductImage:
		if t.Event.Image == nil {
			if strings.EqualFold(t.Input, "skip") {
				return f.preview(t, p), nil
			}
			return Screen{}, ErrImageOrSkip
		}
		p.ImageRef = t.Event.Image.ID
		if err := f.r.store.Products.Update(ctx, p); err != nil {
			return Screen{}, apperrors.Dependency("save image", err)
		}
		return f.preview(t, p), nil

	case models.StepProductPreview:
		return Screen{}, ErrChooseAction

	case models.StepProductEditPrice:
		price, err := validation.ParsePrice(t.Input)
		if err != nil {
			return Screen{}, err
		}
		p.Price = price
		if err := f.r.store.Products.Update(ctx, p); err != nil {
			return Screen{}, apperrors.Dependency("save price", err)
		}
		t.Session.ClearStep()
		return show(screenProduct, p.ID).with("✅ Price updated."), nil

	case models.StepProductVariant:
		v, err := validation.ParseVariant(t.Input)
		if err != nil {
			return Screen{}, err
		}
		variant := &models.ProductVariant{ProductID: p.ID, Size: v.Size, Color: v.Color, SKU: v.SKU, Price: v.Price}
		if err := f.r.store.Products.AddVariant(ctx, variant); err != nil {
			return Screen{}, apperrors.Dependency("add variant", err)
		}
		t.Session.ClearStep()
		return show(screenProduct, p.ID).with(fmt.Sprintf("✅ Added %s.", variant.Label())), nil
	}

	t.Session.ClearStep()
	return show(screenInventory, ""), nil
}

func (f *inventoryFlow) createDraft(ctx context.Context, t *Turn) (Screen, error) {
	name, err := validation.ParseName(t.Input)
	if err != nil {
		return Screen{}, err
	}
	draft := &models.Product{
		MerchantID: t.Merchant.ID,
		Name:       name,
		InStock:    true,
		Status:     models.ProductDraft,
	}
	if err := f.r.store.Products.Create(ctx, draft); err != nil {
		return Screen{}, apperrors.Dependency("create draft product", err)
	}
	t.Session.Enter(models.AwaitingPrice(draft.ID))
	return ask(fmt.Sprintf("How much does %s cost? e.g. 45.50", name), cancelButton), nil
}

func (f *inventoryFlow) skipImage(ctx context.Context, t *Turn, id string) (Screen, error) {
	step := t.Session.Step
	if step.Kind != models.StepProductImage || step.Ref != id {
		return show(screenProduct, id), nil
	}
	p, err := f.stepProduct(ctx, t, id)
	if err != nil {
		return Screen{}, err
	}
	return f.preview(t, p), nil
}

// stepProduct loads the product a step points at. A product that is gone,
// or belongs to a store the user no longer manages here, ends the step.
func (f *inventoryFlow) stepProduct(ctx context.Context, t *Turn, id string) (*models.Product, error) {
	p, err := f.r.ownedProduct(ctx, t, id)
	switch {
	case apperrors.Is(err, ErrProductNotFound):
		return nil, ErrStepTargetGone
	case apperrors.Is(err, ErrNotYourStore):
		t.Session.ClearStep()
		return nil, err
	}
	return p, err
}

func (f *inventoryFlow) preview(t *Turn, p *models.Product) Screen {
	t.Session.Enter(models.ConfirmPreview(p.ID))
	return ask("👀 Preview\n\n"+productDetail(p),
		channel.Button{ID: "inventory:publish:" + p.ID, Title: "Publish"},
		cancelButton,
	)
}

func (f *inventoryFlow) publish(ctx context.Context, t *Turn, p *models.Product) (Screen, error) {
	if p.Price <= 0 && len(p.Variants) == 0 {
		t.Session.Enter(models.AwaitingPrice(p.ID))
		return ask(fmt.Sprintf("%s needs a price before it can be published. e.g. 45.50", p.Name), cancelButton), nil
	}
	p.Status = models.ProductActive
	if err := f.r.store.Products.Update(ctx, p); err != nil {
		return Screen{}, apperrors.Dependency("publish product", err)
	}
	if t.Session.Step.Ref == p.ID {
		t.Session.ClearStep()
	}
	return show(screenInventory, "").with(fmt.Sprintf("🚀 %s is live in your store.", p.Name)), nil
}

// cancel deletes a draft the add wizard created. Published products are
// never removed here.
func (f *inventoryFlow) cancel(ctx context.Context, t *Turn) error {
	step := t.Session.Step
	switch step.Kind {
	case models.StepProductPrice, models.StepProductImage, models.StepProductPreview:
	default:
		return nil
	}
	p, err := f.r.store.Products.Get(ctx, step.Ref)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Dependency("load draft", err)
	}
	if p.Status != models.ProductDraft || p.MerchantID != t.Merchant.ID {
		return nil
	}
	if err := f.r.store.Products.Delete(ctx, p.ID); err != nil {
		return apperrors.Dependency("delete draft", err)
	}
	return nil
}
