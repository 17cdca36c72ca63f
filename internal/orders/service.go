// Package orders owns the order status lifecycle. Every status write goes
// through a compare-and-set on the current status so two merchants
// tapping the same button notify the customer once.
package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"chatstore/internal/channel"
	"chatstore/internal/config"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/identity"
	"chatstore/internal/models"
	"chatstore/internal/repositories"
	"chatstore/internal/templates"
	"chatstore/internal/validation"
)

// Line is one requested item. VariantID is optional.
type Line struct {
	ProductID string
	VariantID string
	Quantity  int
}

type Manager struct {
	store    *repositories.Store
	channel  channel.Channel
	platform config.PlatformConfig
	fees     *FeeCalculator
	now      func() time.Time
}

func NewManager(store *repositories.Store, ch channel.Channel, platform config.PlatformConfig) *Manager {
	return &Manager{
		store:    store,
		channel:  ch,
		platform: platform,
		fees:     NewFeeCalculator(platform.FeeRate()),
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Fees() *FeeCalculator { return m.fees }

// Place creates a PENDING order and tells the customer and the store.
func (m *Manager) Place(ctx context.Context, merchant *models.Merchant, customerKey string, lines []Line) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if merchant.Status != models.MerchantActive {
		return nil, ErrStoreInactive
	}
	if !merchant.IsOpen(m.now()) {
		return nil, ErrStoreClosed
	}

	order := &models.Order{
		MerchantID:  merchant.ID,
		CustomerKey: customerKey,
		Status:      models.OrderPending,
	}
	for _, line := range lines {
		if line.Quantity < 1 || line.Quantity > validation.MaxQuantity {
			return nil, ErrInvalidQuantity
		}
		item, err := m.itemFor(ctx, merchant.ID, line)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
		order.Total += item.LineTotal()
	}
	order.Total = roundCents(order.Total)

	if err := m.store.Orders.Create(ctx, order); err != nil {
		return nil, apperrors.Dependency("create order", err)
	}
	if _, err := m.store.Customers.Touch(ctx, merchant.ID, customerKey, m.now()); err != nil {
		log.Printf("orders: touch customer %s: %v", customerKey, err)
	}

	tpl := templates.For(merchant.Locale)
	m.notify(ctx, customerKey, tpl.OrderPlaced(order.Ref, merchant.DisplayName(), order.Total))
	m.notifyOwners(ctx, merchant, newOrderText(order), []channel.Button{
		{ID: "kitchen:view:" + order.ID, Title: "View order"},
		{ID: "kitchen:ready:" + order.ID, Title: "Mark ready"},
	})
	return order, nil
}

func (m *Manager) itemFor(ctx context.Context, merchantID string, line Line) (models.OrderItem, error) {
	p, err := m.store.Products.Get(ctx, line.ProductID)
	if apperrors.Is(err, apperrors.ErrNotFound) || (err == nil && p.MerchantID != merchantID) {
		return models.OrderItem{}, ErrProductNotFound
	}
	if err != nil {
		return models.OrderItem{}, apperrors.Dependency("load product", err)
	}
	if !p.Orderable() {
		return models.OrderItem{}, ErrOutOfStock
	}
	item := models.OrderItem{ProductID: p.ID, Name: p.Name, Quantity: line.Quantity, UnitPrice: p.Price}
	if line.VariantID != "" {
		found := false
		for _, v := range p.Variants {
			if v.ID == line.VariantID {
				item.Name = fmt.Sprintf("%s (%s)", p.Name, v.Label())
				item.UnitPrice = v.Price
				found = true
				break
			}
		}
		if !found {
			return models.OrderItem{}, ErrProductNotFound
		}
	}
	return item, nil
}

// MarkPaid records an external payment confirmation. Repeating it on a
// PAID order is a no-op.
func (m *Manager) MarkPaid(ctx context.Context, orderID string) (*models.Order, bool, error) {
	order, err := m.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.Status == models.OrderPaid {
		return order, false, nil
	}
	changed, err := m.transition(ctx, order, models.OrderPaid)
	if err != nil || !changed {
		return order, false, err
	}
	if merchant, err := m.store.Merchants.GetByID(ctx, order.MerchantID); err == nil {
		m.notifyOwners(ctx, merchant, fmt.Sprintf("💰 Order #%s is paid (%s).", order.Ref, templates.Money(order.Total)), []channel.Button{
			{ID: "kitchen:ready:" + order.ID, Title: "Mark ready"},
		})
	}
	return order, true, nil
}

// MarkReady moves a PENDING or PAID order to READY_FOR_PICKUP and tells
// the customer. An order that is already ready reports success without a
// second notification.
func (m *Manager) MarkReady(ctx context.Context, orderID, merchantID string) (*models.Order, bool, error) {
	order, err := m.owned(ctx, orderID, merchantID)
	if err != nil {
		return nil, false, err
	}
	if order.Status == models.OrderReady {
		return order, false, nil
	}
	changed, err := m.transition(ctx, order, models.OrderReady)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return order, false, nil
	}
	m.notifyCustomer(ctx, order, func(t *templates.Templates, store string) string {
		return t.OrderReady(order.Ref, store)
	})
	return order, true, nil
}

// MarkCollected completes a READY_FOR_PICKUP order, reports the platform
// fee to the admin numbers and returns the merchant's share.
func (m *Manager) MarkCollected(ctx context.Context, orderID, merchantID string) (*Settlement, error) {
	order, err := m.owned(ctx, orderID, merchantID)
	if err != nil {
		return nil, err
	}
	changed, err := m.transition(ctx, order, models.OrderCompleted)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrInvalidTransition
	}
	settlement := m.fees.Settle(order)

	merchant := m.notifyCustomer(ctx, order, func(t *templates.Templates, store string) string {
		return t.OrderComplete(order.Ref, store)
	})
	storeName := order.MerchantID
	if merchant != nil {
		storeName = merchant.DisplayName()
	}
	notice := m.feeNotice(storeName, settlement)
	for _, admin := range identity.NormalizeAll(m.platform.AdminNumbers) {
		m.notify(ctx, admin, notice)
	}
	return &settlement, nil
}

// Cancel cancels a non-terminal order on behalf of its merchant.
func (m *Manager) Cancel(ctx context.Context, orderID, merchantID string) (*models.Order, error) {
	order, err := m.owned(ctx, orderID, merchantID)
	if err != nil {
		return nil, err
	}
	changed, err := m.transition(ctx, order, models.OrderCancelled)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrInvalidTransition
	}
	m.notifyCustomer(ctx, order, func(t *templates.Templates, store string) string {
		return t.OrderCancelled(order.Ref, store)
	})
	return order, nil
}

func (m *Manager) load(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := m.store.Orders.Get(ctx, orderID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperrors.Dependency("load order", err)
	}
	return order, nil
}

func (m *Manager) owned(ctx context.Context, orderID, merchantID string) (*models.Order, error) {
	order, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.MerchantID != merchantID {
		return nil, ErrNotYourOrder
	}
	return order, nil
}

// transition applies a compare-and-set from every status allowed to move
// to `to`. changed is false when a concurrent writer got there first and
// the order already sits in `to`.
func (m *Manager) transition(ctx context.Context, order *models.Order, to models.OrderStatus) (bool, error) {
	if !CanTransition(order.Status, to) {
		return false, ErrInvalidTransition
	}
	ok, err := m.store.Orders.TransitionStatus(ctx, order.ID, sourcesOf(to), to)
	if err != nil {
		return false, apperrors.Dependency("update order status", err)
	}
	if !ok {
		current, err := m.load(ctx, order.ID)
		if err != nil {
			return false, err
		}
		*order = *current
		if current.Status == to {
			return false, nil
		}
		return false, ErrInvalidTransition
	}
	order.Status = to
	return true, nil
}

func (m *Manager) notifyCustomer(ctx context.Context, order *models.Order, text func(*templates.Templates, string) string) *models.Merchant {
	merchant, err := m.store.Merchants.GetByID(ctx, order.MerchantID)
	if err != nil {
		log.Printf("orders: load merchant %s for order %s: %v", order.MerchantID, order.Ref, err)
		return nil
	}
	m.notify(ctx, order.CustomerKey, text(templates.For(merchant.Locale), merchant.DisplayName()))
	return merchant
}

// Notification failures never undo a status change.
func (m *Manager) notify(ctx context.Context, to, text string) {
	if err := m.channel.SendText(ctx, to, text); err != nil {
		log.Printf("orders: notify %s: %v", to, err)
	}
}

func (m *Manager) notifyOwners(ctx context.Context, merchant *models.Merchant, text string, buttons []channel.Button) {
	keys, err := OwnerKeys(ctx, m.store.Owners, merchant)
	if err != nil {
		log.Printf("orders: list owners of %s: %v", merchant.ID, err)
		return
	}
	for _, key := range keys {
		if err := m.channel.SendButtons(ctx, key, text, buttons); err != nil {
			log.Printf("orders: notify owner %s: %v", key, err)
		}
	}
}

func (m *Manager) feeNotice(store string, s Settlement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💸 %s fee notice\n", m.platform.Name)
	fmt.Fprintf(&b, "Store: %s\n", store)
	fmt.Fprintf(&b, "Order: #%s\n", s.Order.Ref)
	fmt.Fprintf(&b, "Total: %s\n", templates.Money(s.Order.Total))
	fmt.Fprintf(&b, "Fee (%g%%): %s\n", m.platform.FeePercent, templates.Money(s.Fee))
	fmt.Fprintf(&b, "Merchant earnings: %s\n", templates.Money(s.Earnings))
	fmt.Fprintf(&b, "Payout day: %s", m.platform.PayoutDay)
	return b.String()
}

func newOrderText(o *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 New order #%s\n", o.Ref)
	for _, item := range o.Items {
		fmt.Fprintf(&b, "%d x %s %s\n", item.Quantity, item.Name, templates.Money(item.LineTotal()))
	}
	fmt.Fprintf(&b, "Total: %s", templates.Money(o.Total))
	return b.String()
}

// OwnerKeys returns the user keys of every active owner of the store.
func OwnerKeys(ctx context.Context, owners repositories.OwnerRepository, merchant *models.Merchant) ([]string, error) {
	rows, err := owners.ListActiveByMerchant(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.UserKey)
	}
	return keys, nil
}
