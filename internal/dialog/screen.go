package dialog

import (
	"context"

	"chatstore/internal/channel"
)

type ScreenID string

const (
	screenNone          ScreenID = ""
	screenHome          ScreenID = "home"
	screenInventory     ScreenID = "inventory"
	screenProduct       ScreenID = "product"
	screenKitchen       ScreenID = "kitchen"
	screenOrder         ScreenID = "order"
	screenSettings      ScreenID = "settings"
	screenOwners        ScreenID = "owners"
	screenAdmin         ScreenID = "admin"
	screenStore         ScreenID = "store"
	screenStoreProduct  ScreenID = "store_product"
	screenCustomerOrder ScreenID = "customer_orders"
)

// Prompt is a message ready to send.
type Prompt struct {
	Text      string
	Buttons   []channel.Button
	ListLabel string
	Sections  []channel.Section
}

// Screen is what a handler wants the user to see next. Either Prompt is
// set, or ID names a screen the router draws from current state. Notice
// is prepended to whatever is drawn.
type Screen struct {
	Notice string
	ID     ScreenID
	Ref    string
	Prompt *Prompt
}

func (s Screen) with(notice string) Screen {
	s.Notice = notice
	return s
}

func show(id ScreenID, ref string) Screen {
	return Screen{ID: id, Ref: ref}
}

func say(text string) Screen {
	return Screen{Prompt: &Prompt{Text: text}}
}

func ask(text string, buttons ...channel.Button) Screen {
	return Screen{Prompt: &Prompt{Text: text, Buttons: buttons}}
}

func pick(text, label string, sections ...channel.Section) Screen {
	return Screen{Prompt: &Prompt{Text: text, ListLabel: label, Sections: sections}}
}

var (
	cancelButton = channel.Button{ID: "nav:cancel", Title: "Cancel"}
	menuButton   = channel.Button{ID: "nav:menu", Title: "Menu"}
)

// render draws the screen once. It is the only place that sends the
// reply for an inbound event.
func (r *Router) render(ctx context.Context, t *Turn, s Screen) error {
	p := s.Prompt
	if p == nil && s.ID != screenNone {
		built, err := r.build(ctx, t, s.ID, s.Ref)
		if err != nil {
			return err
		}
		p = &built
	}
	if p == nil {
		if s.Notice == "" {
			return nil
		}
		p = &Prompt{}
	}

	text := p.Text
	if s.Notice != "" {
		if text != "" {
			text = s.Notice + "\n\n" + text
		} else {
			text = s.Notice
		}
	}

	switch {
	case len(p.Sections) > 0:
		return r.channel.SendList(ctx, t.Key, text, p.ListLabel, p.Sections)
	case len(p.Buttons) > 0:
		return r.channel.SendButtons(ctx, t.Key, text, p.Buttons)
	default:
		return r.channel.SendText(ctx, t.Key, text)
	}
}

func (r *Router) build(ctx context.Context, t *Turn, id ScreenID, ref string) (Prompt, error) {
	switch id {
	case screenHome:
		return r.home(ctx, t)
	case screenInventory:
		return r.inventoryScreen(ctx, t)
	case screenProduct:
		return r.productScreen(ctx, t, ref)
	case screenKitchen:
		return r.kitchenScreen(ctx, t)
	case screenOrder:
		return r.orderScreen(ctx, t, ref)
	case screenSettings:
		return r.settingsScreen(t), nil
	case screenOwners:
		return r.ownersScreen(ctx, t)
	case screenAdmin:
		return adminScreen(), nil
	case screenStore:
		return r.storeScreen(ctx, t, ref)
	case screenStoreProduct:
		return r.storeProductScreen(ctx, t, ref)
	case screenCustomerOrder:
		return r.customerOrdersScreen(ctx, t)
	}
	return r.home(ctx, t)
}
