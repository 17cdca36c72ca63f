package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatstore/internal/channel"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/templates"
)

var openStatuses = []models.OrderStatus{models.OrderPending, models.OrderPaid, models.OrderReady}

func (r *Router) home(ctx context.Context, t *Turn) (Prompt, error) {
	switch {
	case t.Merchant != nil && t.Merchant.Status == models.MerchantOnboarding:
		return onboardingPrompt(t.Merchant), nil
	case t.Merchant != nil:
		return r.merchantMenu(ctx, t)
	}
	return r.customerHome(ctx, t)
}

func (r *Router) merchantMenu(ctx context.Context, t *Turn) (Prompt, error) {
	m := t.Merchant
	open, err := r.store.Orders.ListByMerchant(ctx, m.ID, openStatuses, 0)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list open orders", err)
	}
	status := "🔴 Closed"
	if m.IsOpen(t.Now) {
		status = "🟢 Open"
	}
	text := fmt.Sprintf("🏪 %s (@%s)\nStatus: %s\nOpen orders: %d", m.DisplayName(), m.Handle, status, len(open))
	return Prompt{
		Text:      text,
		ListLabel: "Menu",
		Sections: []channel.Section{
			{Title: "Orders", Rows: []channel.Row{
				{ID: "kitchen:list", Title: "Open orders", Description: fmt.Sprintf("%d waiting", len(open))},
			}},
			{Title: "Products", Rows: []channel.Row{
				{ID: "inventory:list", Title: "Products"},
				{ID: "inventory:add", Title: "Add product"},
			}},
			{Title: "Store", Rows: []channel.Row{
				{ID: "settings:home", Title: "Settings"},
				{ID: "broadcast:compose", Title: "Send broadcast", Description: "Message your opted-in customers"},
				{ID: "nav:shop", Title: "Switch to shopping"},
			}},
		},
	}, nil
}

func (r *Router) customerHome(ctx context.Context, t *Turn) (Prompt, error) {
	text := fmt.Sprintf("👋 Welcome to %s!\nSend @handle to visit a store, e.g. @joesgrill.", r.platform.Name)
	buttons := []channel.Button{{ID: "shop:orders", Title: "My orders"}}
	if t.Store != nil {
		buttons = append(buttons, channel.Button{ID: "shop:store:" + t.Store.ID, Title: t.Store.DisplayName()})
	}
	owned, err := r.store.Owners.ListActiveByUser(ctx, t.Key)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list owned stores", err)
	}
	if len(owned) > 0 {
		buttons = append(buttons, channel.Button{ID: "nav:sell", Title: "My store"})
	}
	return Prompt{Text: text, Buttons: buttons}, nil
}

func (r *Router) inventoryScreen(ctx context.Context, t *Turn) (Prompt, error) {
	products, err := r.store.Products.ListByMerchant(ctx, t.Merchant.ID)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list products", err)
	}
	actions := []channel.Button{{ID: "inventory:add", Title: "Add product"}, menuButton}
	if len(products) == 0 {
		return Prompt{Text: "You have no products yet.", Buttons: actions}, nil
	}
	rows := make([]channel.Row, 0, len(products))
	for _, p := range products {
		rows = append(rows, channel.Row{ID: "inventory:view:" + p.ID, Title: p.Name, Description: productSummary(&p)})
	}
	if len(rows) > channel.MaxRows-2 {
		rows = rows[:channel.MaxRows-2]
	}
	return Prompt{
		Text:      fmt.Sprintf("📦 %d products", len(products)),
		ListLabel: "Products",
		Sections: []channel.Section{
			{Title: "Products", Rows: rows},
			{Title: "Actions", Rows: []channel.Row{
				{ID: "inventory:add", Title: "Add product"},
				{ID: "nav:menu", Title: "Back to menu"},
			}},
		},
	}, nil
}

func productSummary(p *models.Product) string {
	price, from := p.DisplayPrice()
	parts := []string{templates.Money(price)}
	if from {
		parts[0] = "from " + parts[0]
	}
	if !p.InStock {
		parts = append(parts, "out of stock")
	}
	if p.Status == models.ProductDraft {
		parts = append(parts, "draft")
	}
	return strings.Join(parts, " · ")
}

func productDetail(p *models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n%s", p.Name, productSummary(p))
	for _, v := range p.Variants {
		fmt.Fprintf(&b, "\n• %s %s", v.Label(), templates.Money(v.Price))
	}
	if p.ImageRef != "" {
		b.WriteString("\n📷 Photo added")
	}
	return b.String()
}

// ownedProduct loads a product of the managed store.
func (r *Router) ownedProduct(ctx context.Context, t *Turn, id string) (*models.Product, error) {
	p, err := r.store.Products.Get(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.Dependency("load product", err)
	}
	if p.MerchantID != t.Merchant.ID {
		return nil, ErrNotYourStore
	}
	return p, nil
}

func (r *Router) productScreen(ctx context.Context, t *Turn, id string) (Prompt, error) {
	p, err := r.ownedProduct(ctx, t, id)
	if err != nil {
		return Prompt{}, err
	}
	stock := channel.Row{ID: "inventory:stock:" + p.ID, Title: "Mark out of stock"}
	if !p.InStock {
		stock.Title = "Mark in stock"
	}
	rows := []channel.Row{
		{ID: "inventory:price:" + p.ID, Title: "Edit price"},
		{ID: "inventory:variant:" + p.ID, Title: "Add variant", Description: "Size / colour / SKU with its own price"},
		stock,
	}
	if p.Status == models.ProductDraft {
		rows = append(rows, channel.Row{ID: "inventory:publish:" + p.ID, Title: "Publish"})
	}
	rows = append(rows,
		channel.Row{ID: "inventory:delete:" + p.ID, Title: "Delete"},
		channel.Row{ID: "inventory:list", Title: "Back to products"},
	)
	return Prompt{
		Text:      productDetail(p),
		ListLabel: "Options",
		Sections:  []channel.Section{{Title: "Product", Rows: rows}},
	}, nil
}

func (r *Router) kitchenScreen(ctx context.Context, t *Turn) (Prompt, error) {
	open, err := r.store.Orders.ListByMerchant(ctx, t.Merchant.ID, openStatuses, channel.MaxRows)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list open orders", err)
	}
	if len(open) == 0 {
		return Prompt{Text: "No open orders right now 🎉", Buttons: []channel.Button{menuButton}}, nil
	}
	rows := make([]channel.Row, 0, len(open))
	for _, o := range open {
		rows = append(rows, channel.Row{
			ID:          "kitchen:view:" + o.ID,
			Title:       fmt.Sprintf("#%s · %s", o.Ref, templates.Money(o.Total)),
			Description: fmt.Sprintf("%s · %s", statusLabel(o.Status), elapsed(t.Now, o.CreatedAt)),
		})
	}
	return Prompt{
		Text:      fmt.Sprintf("🍳 %d open orders", len(open)),
		ListLabel: "Orders",
		Sections:  []channel.Section{{Title: "Open orders", Rows: rows}},
	}, nil
}

func (r *Router) ownedOrder(ctx context.Context, t *Turn, id string) (*models.Order, error) {
	o, err := r.store.Orders.Get(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperrors.Dependency("load order", err)
	}
	if o.MerchantID != t.Merchant.ID {
		return nil, ErrNotYourStore
	}
	return o, nil
}

func (r *Router) orderScreen(ctx context.Context, t *Turn, id string) (Prompt, error) {
	o, err := r.ownedOrder(ctx, t, id)
	if err != nil {
		return Prompt{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Order #%s\nStatus: %s\nCustomer: +%s\nPlaced: %s\n", o.Ref, statusLabel(o.Status), o.CustomerKey, elapsed(t.Now, o.CreatedAt))
	for _, item := range o.Items {
		fmt.Fprintf(&b, "\n%d x %s %s", item.Quantity, item.Name, templates.Money(item.LineTotal()))
	}
	fmt.Fprintf(&b, "\n\nTotal: %s", templates.Money(o.Total))

	var buttons []channel.Button
	switch o.Status {
	case models.OrderPending, models.OrderPaid:
		buttons = []channel.Button{
			{ID: "kitchen:ready:" + o.ID, Title: "Mark ready"},
			{ID: "kitchen:cancel:" + o.ID, Title: "Cancel order"},
		}
	case models.OrderReady:
		buttons = []channel.Button{
			{ID: "kitchen:collected:" + o.ID, Title: "Collected"},
			{ID: "kitchen:cancel:" + o.ID, Title: "Cancel order"},
		}
	}
	buttons = append(buttons, channel.Button{ID: "kitchen:list", Title: "All orders"})
	return Prompt{Text: b.String(), Buttons: buttons}, nil
}

func (r *Router) settingsScreen(t *Turn) Prompt {
	m := t.Merchant
	toggle := channel.Row{ID: "settings:toggle", Title: "Close store now", Description: "Pause new orders"}
	if m.ManualClosed {
		toggle = channel.Row{ID: "settings:toggle", Title: "Reopen store", Description: "Accept orders in trading hours"}
	}
	return Prompt{
		Text:      fmt.Sprintf("⚙️ Settings for %s\n%s", m.DisplayName(), hoursSummary(m)),
		ListLabel: "Settings",
		Sections: []channel.Section{{Title: "Settings", Rows: []channel.Row{
			{ID: "settings:profile", Title: "Profile"},
			toggle,
			{ID: "settings:hours", Title: "Trading hours"},
			{ID: "settings:owners", Title: "Owners"},
			{ID: "settings:locale", Title: "Language", Description: "Customer message language"},
			{ID: "nav:menu", Title: "Back to menu"},
		}}},
	}
}

func hoursSummary(m *models.Merchant) string {
	day := func(open, close string) string {
		if open == "" || close == "" {
			return "closed"
		}
		return open + " - " + close
	}
	sunday := "closed"
	if m.SundayOpen {
		sunday = day(m.SaturdayOpen, m.SaturdayClose)
	}
	return fmt.Sprintf("Mon-Fri: %s\nSat: %s\nSun: %s",
		day(m.WeekdayOpen, m.WeekdayClose), day(m.SaturdayOpen, m.SaturdayClose), sunday)
}

func (r *Router) ownersScreen(ctx context.Context, t *Turn) (Prompt, error) {
	owners, err := r.store.Owners.ListActiveByMerchant(ctx, t.Merchant.ID)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list owners", err)
	}
	rows := make([]channel.Row, 0, len(owners)+1)
	for _, o := range owners {
		row := channel.Row{ID: "settings:remove_owner:" + o.UserKey, Title: "+" + o.UserKey, Description: "Tap to remove"}
		if o.UserKey == t.Key {
			row.Description = "You"
		}
		rows = append(rows, row)
	}
	if len(rows) > channel.MaxRows-1 {
		rows = rows[:channel.MaxRows-1]
	}
	rows = append(rows, channel.Row{ID: "settings:add_owner", Title: "Add owner", Description: "Invite a phone number"})
	return Prompt{
		Text:      fmt.Sprintf("👥 %d owners", len(owners)),
		ListLabel: "Owners",
		Sections:  []channel.Section{{Title: "Owners", Rows: rows}},
	}, nil
}

func adminScreen() Prompt {
	return Prompt{
		Text: "🛠️ Platform admin",
		Buttons: []channel.Button{
			{ID: "admin:invite", Title: "Invite store"},
			{ID: "admin:revoke", Title: "Revoke store"},
			{ID: "admin:stores", Title: "List stores"},
		},
	}
}

func (r *Router) loadStore(ctx context.Context, id string) (*models.Merchant, error) {
	m, err := r.store.Merchants.GetByID(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, apperrors.Dependency("load store", err)
	}
	return m, nil
}

func (r *Router) storeScreen(ctx context.Context, t *Turn, id string) (Prompt, error) {
	m, err := r.loadStore(ctx, id)
	if err != nil {
		return Prompt{}, err
	}
	products, err := r.store.Products.ListByMerchant(ctx, m.ID, models.ProductActive)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list products", err)
	}
	status := "🟢 Open now"
	if !m.IsOpen(t.Now) {
		status = "🔴 Closed right now\n" + hoursSummary(m)
	}
	text := fmt.Sprintf("🛍️ %s\n%s", m.DisplayName(), status)
	if len(products) == 0 {
		return Prompt{Text: text + "\n\nNo products yet.", Buttons: []channel.Button{{ID: "shop:orders", Title: "My orders"}}}, nil
	}
	rows := make([]channel.Row, 0, len(products))
	for _, p := range products {
		desc := productSummary(&p)
		rows = append(rows, channel.Row{ID: "shop:product:" + p.ID, Title: p.Name, Description: desc})
	}
	if len(rows) > channel.MaxRows-1 {
		rows = rows[:channel.MaxRows-1]
	}
	return Prompt{
		Text:      text,
		ListLabel: "Browse",
		Sections: []channel.Section{
			{Title: "Menu", Rows: rows},
			{Title: "You", Rows: []channel.Row{{ID: "shop:orders", Title: "My orders"}}},
		},
	}, nil
}

func (r *Router) storeProductScreen(ctx context.Context, t *Turn, id string) (Prompt, error) {
	p, err := r.store.Products.Get(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) || (err == nil && p.Status != models.ProductActive) {
		return Prompt{}, ErrProductNotFound
	}
	if err != nil {
		return Prompt{}, apperrors.Dependency("load product", err)
	}
	back := channel.Button{ID: "shop:store:" + p.MerchantID, Title: "Back"}
	if !p.InStock {
		return Prompt{Text: productDetail(p) + "\n\nSorry, this is out of stock.", Buttons: []channel.Button{back}}, nil
	}
	if len(p.Variants) == 0 {
		return Prompt{Text: productDetail(p), Buttons: []channel.Button{{ID: "shop:buy:" + p.ID, Title: "Order"}, back}}, nil
	}
	rows := make([]channel.Row, 0, len(p.Variants))
	for _, v := range p.Variants {
		rows = append(rows, channel.Row{ID: "shop:buy:" + p.ID + ":" + v.ID, Title: v.Label(), Description: templates.Money(v.Price)})
	}
	return Prompt{
		Text:      productDetail(p),
		ListLabel: "Choose option",
		Sections:  []channel.Section{{Title: "Options", Rows: rows}},
	}, nil
}

func (r *Router) customerOrdersScreen(ctx context.Context, t *Turn) (Prompt, error) {
	mine, err := r.store.Orders.ListByCustomer(ctx, t.Key, 5)
	if err != nil {
		return Prompt{}, apperrors.Dependency("list orders", err)
	}
	if len(mine) == 0 {
		return Prompt{Text: "You haven't placed any orders yet."}, nil
	}
	lines := make([]string, 0, len(mine))
	for _, o := range mine {
		lines = append(lines, customerOrderLine(&o))
	}
	return Prompt{Text: "🧾 Your recent orders\n\n" + strings.Join(lines, "\n")}, nil
}

func customerOrderLine(o *models.Order) string {
	return fmt.Sprintf("#%s · %s · %s", o.Ref, templates.Money(o.Total), statusLabel(o.Status))
}

func statusLabel(s models.OrderStatus) string {
	switch s {
	case models.OrderPending:
		return "Pending"
	case models.OrderPaid:
		return "Paid"
	case models.OrderReady:
		return "Ready for pickup"
	case models.OrderCompleted:
		return "Completed"
	case models.OrderCancelled:
		return "Cancelled"
	}
	return string(s)
}

func elapsed(now, since time.Time) string {
	d := now.Sub(since)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm ago", int(d.Hours()), int(d.Minutes())%60)
}
