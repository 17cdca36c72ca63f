// Package memory is an in-process implementation of every repository.
// Records are copied on the way in and out so callers cannot mutate
// stored state without going through the interface.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/repositories"
)

type db struct {
	mu        sync.Mutex
	sessions  map[string]models.Session
	merchants map[string]models.Merchant
	owners    map[string]models.MerchantOwner
	products  map[string]models.Product
	orders    map[string]models.Order
	customers map[string]models.MerchantCustomer
	invites   map[string]models.OwnerInvite
	seq       int64
}

// tick returns a strictly increasing timestamp for rows that sort by
// creation order.
func (d *db) tick() time.Time {
	d.seq++
	return time.Unix(0, d.seq)
}

// NewStore returns an empty Store.
func NewStore() *repositories.Store {
	d := &db{
		sessions:  map[string]models.Session{},
		merchants: map[string]models.Merchant{},
		owners:    map[string]models.MerchantOwner{},
		products:  map[string]models.Product{},
		orders:    map[string]models.Order{},
		customers: map[string]models.MerchantCustomer{},
		invites:   map[string]models.OwnerInvite{},
	}
	return &repositories.Store{
		Sessions:  &Sessions{d},
		Merchants: &Merchants{d},
		Owners:    &Owners{d},
		Products:  &Products{d},
		Orders:    &Orders{d},
		Customers: &Customers{d},
		Invites:   &Invites{d},
	}
}

func stamp(created *time.Time, updated *time.Time) {
	now := time.Now()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

type Sessions struct{ d *db }

func (r *Sessions) Get(ctx context.Context, key string) (*models.Session, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	s, ok := r.d.sessions[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	s.Payload = s.Payload.Clone()
	return &s, nil
}

func (r *Sessions) Save(ctx context.Context, s *models.Session) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	stamp(&s.CreatedAt, &s.UpdatedAt)
	cp := *s
	cp.Payload = s.Payload.Clone()
	r.d.sessions[s.Key] = cp
	return nil
}

type Merchants struct{ d *db }

func (r *Merchants) find(match func(models.Merchant) bool) (*models.Merchant, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var found *models.Merchant
	for _, m := range r.d.merchants {
		if match(m) && (found == nil || m.CreatedAt.After(found.CreatedAt)) {
			m := m
			found = &m
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

func (r *Merchants) GetByID(ctx context.Context, id string) (*models.Merchant, error) {
	return r.find(func(m models.Merchant) bool { return m.ID == id })
}

func (r *Merchants) GetByHandle(ctx context.Context, handle string) (*models.Merchant, error) {
	return r.find(func(m models.Merchant) bool { return m.Handle == handle })
}

func (r *Merchants) GetByAdminHandle(ctx context.Context, handle string) (*models.Merchant, error) {
	return r.find(func(m models.Merchant) bool { return m.AdminHandle == handle })
}

func (r *Merchants) FindOnboardingByOwner(ctx context.Context, ownerKey string) (*models.Merchant, error) {
	return r.find(func(m models.Merchant) bool {
		return m.OwnerKey == ownerKey && m.Status == models.MerchantOnboarding
	})
}

func (r *Merchants) HandleExists(ctx context.Context, handle string) (bool, error) {
	_, err := r.GetByHandle(ctx, handle)
	return err == nil, nil
}

func (r *Merchants) AdminHandleExists(ctx context.Context, handle string) (bool, error) {
	_, err := r.GetByAdminHandle(ctx, handle)
	return err == nil, nil
}

func (r *Merchants) List(ctx context.Context, limit int) ([]models.Merchant, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]models.Merchant, 0, len(r.d.merchants))
	for _, m := range r.d.merchants {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Merchants) Create(ctx context.Context, m *models.Merchant) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if m.ID == "" {
		m.ID = models.NewID()
	}
	for _, other := range r.d.merchants {
		if other.Handle == m.Handle || other.AdminHandle == m.AdminHandle {
			return apperrors.New("duplicate key value violates unique constraint")
		}
	}
	if m.Status == "" {
		m.Status = models.MerchantOnboarding
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.d.tick()
	}
	m.UpdatedAt = m.CreatedAt
	r.d.merchants[m.ID] = *m
	return nil
}

func (r *Merchants) Update(ctx context.Context, m *models.Merchant) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.merchants[m.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.UpdatedAt = time.Now()
	r.d.merchants[m.ID] = *m
	return nil
}

type Owners struct{ d *db }

func (r *Owners) list(match func(models.MerchantOwner) bool) []models.MerchantOwner {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []models.MerchantOwner
	for _, o := range r.d.owners {
		if match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Owners) ListActiveByUser(ctx context.Context, userKey string) ([]models.MerchantOwner, error) {
	return r.list(func(o models.MerchantOwner) bool { return o.UserKey == userKey && o.Active }), nil
}

func (r *Owners) ListActiveByMerchant(ctx context.Context, merchantID string) ([]models.MerchantOwner, error) {
	return r.list(func(o models.MerchantOwner) bool { return o.MerchantID == merchantID && o.Active }), nil
}

func (r *Owners) Activate(ctx context.Context, merchantID, userKey string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, o := range r.d.owners {
		if o.MerchantID == merchantID && o.UserKey == userKey {
			o.Active = true
			r.d.owners[id] = o
			return nil
		}
	}
	o := models.MerchantOwner{ID: models.NewID(), MerchantID: merchantID, UserKey: userKey, Active: true, CreatedAt: r.d.tick()}
	r.d.owners[o.ID] = o
	return nil
}

func (r *Owners) Deactivate(ctx context.Context, merchantID, userKey string) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, o := range r.d.owners {
		if o.MerchantID == merchantID && o.UserKey == userKey && o.Active {
			o.Active = false
			r.d.owners[id] = o
			return true, nil
		}
	}
	return false, nil
}

func (r *Owners) DeactivateAll(ctx context.Context, merchantID string) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var n int64
	for id, o := range r.d.owners {
		if o.MerchantID == merchantID && o.Active {
			o.Active = false
			r.d.owners[id] = o
			n++
		}
	}
	return n, nil
}

type Products struct{ d *db }

func copyProduct(p models.Product) models.Product {
	p.Variants = append([]models.ProductVariant(nil), p.Variants...)
	return p
}

func (r *Products) Get(ctx context.Context, id string) (*models.Product, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.products[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	p = copyProduct(p)
	return &p, nil
}

func (r *Products) ListByMerchant(ctx context.Context, merchantID string, statuses ...models.ProductStatus) ([]models.Product, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []models.Product
	for _, p := range r.d.products {
		if p.MerchantID != merchantID {
			continue
		}
		if len(statuses) > 0 && !containsProductStatus(statuses, p.Status) {
			continue
		}
		out = append(out, copyProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func containsProductStatus(list []models.ProductStatus, s models.ProductStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *Products) Create(ctx context.Context, p *models.Product) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if p.ID == "" {
		p.ID = models.NewID()
	}
	if p.Status == "" {
		p.Status = models.ProductDraft
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	r.d.products[p.ID] = copyProduct(*p)
	return nil
}

func (r *Products) Update(ctx context.Context, p *models.Product) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	stored, ok := r.d.products[p.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	cp := copyProduct(*p)
	cp.Variants = stored.Variants
	cp.UpdatedAt = time.Now()
	r.d.products[p.ID] = cp
	return nil
}

func (r *Products) Delete(ctx context.Context, id string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.products[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.d.products, id)
	return nil
}

func (r *Products) AddVariant(ctx context.Context, v *models.ProductVariant) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.products[v.ProductID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if v.ID == "" {
		v.ID = models.NewID()
	}
	stamp(&v.CreatedAt, nil)
	p.Variants = append(append([]models.ProductVariant(nil), p.Variants...), *v)
	r.d.products[p.ID] = p
	return nil
}

type Orders struct{ d *db }

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (r *Orders) Get(ctx context.Context, id string) (*models.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *Orders) GetByRef(ctx context.Context, merchantID, ref string) (*models.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, o := range r.d.orders {
		if o.MerchantID == merchantID && o.Ref == ref {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *Orders) Create(ctx context.Context, o *models.Order) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if o.ID == "" {
		o.ID = models.NewID()
	}
	if o.Ref == "" {
		o.Ref = models.NewRef()
	}
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = models.NewID()
		}
		o.Items[i].OrderID = o.ID
	}
	stamp(&o.CreatedAt, &o.UpdatedAt)
	r.d.orders[o.ID] = copyOrder(*o)
	return nil
}

func containsOrderStatus(list []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *Orders) filter(match func(models.Order) bool) []models.Order {
	var out []models.Order
	for _, o := range r.d.orders {
		if match(o) {
			out = append(out, copyOrder(o))
		}
	}
	return out
}

func limitOrders(out []models.Order, limit int) []models.Order {
	if limit > 0 && len(out) > limit {
		return out[:limit]
	}
	return out
}

func (r *Orders) ListByMerchant(ctx context.Context, merchantID string, statuses []models.OrderStatus, limit int) ([]models.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := r.filter(func(o models.Order) bool {
		return o.MerchantID == merchantID && (len(statuses) == 0 || containsOrderStatus(statuses, o.Status))
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return limitOrders(out, limit), nil
}

func (r *Orders) ListByCustomer(ctx context.Context, customerKey string, limit int) ([]models.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := r.filter(func(o models.Order) bool { return o.CustomerKey == customerKey })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limitOrders(out, limit), nil
}

func (r *Orders) TransitionStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.orders[id]
	if !ok || !containsOrderStatus(from, o.Status) {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	r.d.orders[id] = o
	return true, nil
}

func (r *Orders) ListStale(ctx context.Context, statuses []models.OrderStatus, before time.Time, maxAlerts, limit int) ([]models.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := r.filter(func(o models.Order) bool {
		return containsOrderStatus(statuses, o.Status) && o.CreatedAt.Before(before) && o.AlertCount < maxAlerts
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return limitOrders(out, limit), nil
}

func (r *Orders) IncrementAlertCount(ctx context.Context, id string, max int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.orders[id]
	if !ok || o.AlertCount >= max {
		return false, nil
	}
	o.AlertCount++
	r.d.orders[id] = o
	return true, nil
}

// SetCreatedAt backdates an order; tests use it to make orders stale.
func (r *Orders) SetCreatedAt(id string, at time.Time) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if o, ok := r.d.orders[id]; ok {
		o.CreatedAt = at
		r.d.orders[id] = o
	}
}

type Customers struct{ d *db }

func (r *Customers) Touch(ctx context.Context, merchantID, customerKey string, at time.Time) (*models.MerchantCustomer, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, c := range r.d.customers {
		if c.MerchantID == merchantID && c.CustomerKey == customerKey {
			c.LastInteractionAt = at
			r.d.customers[id] = c
			return &c, nil
		}
	}
	c := models.MerchantCustomer{
		ID:                models.NewID(),
		MerchantID:        merchantID,
		CustomerKey:       customerKey,
		OptIn:             true,
		LastInteractionAt: at,
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	r.d.customers[c.ID] = c
	return &c, nil
}

func (r *Customers) SetOptIn(ctx context.Context, merchantID, customerKey string, optIn bool) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, c := range r.d.customers {
		if c.MerchantID == merchantID && c.CustomerKey == customerKey {
			c.OptIn = optIn
			r.d.customers[id] = c
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *Customers) SetOptInAll(ctx context.Context, customerKey string, optIn bool) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var n int64
	for id, c := range r.d.customers {
		if c.CustomerKey == customerKey {
			c.OptIn = optIn
			r.d.customers[id] = c
			n++
		}
	}
	return n, nil
}

func (r *Customers) ListOptedIn(ctx context.Context, merchantID string) ([]models.MerchantCustomer, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []models.MerchantCustomer
	for _, c := range r.d.customers {
		if c.MerchantID == merchantID && c.OptIn {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastInteractionAt.After(out[j].LastInteractionAt) })
	return out, nil
}

func (r *Customers) MarkBroadcast(ctx context.Context, id string, at time.Time) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	c, ok := r.d.customers[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.LastBroadcastAt = &at
	r.d.customers[id] = c
	return nil
}

// Put stores a CRM row as-is; tests use it to seed malformed rows.
func (r *Customers) Put(c models.MerchantCustomer) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if c.ID == "" {
		c.ID = models.NewID()
	}
	r.d.customers[c.ID] = c
}

type Invites struct{ d *db }

func (r *Invites) Get(ctx context.Context, id string) (*models.OwnerInvite, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inv, ok := r.d.invites[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &inv, nil
}

func (r *Invites) Refresh(ctx context.Context, merchantID, phone, invitedBy string) (*models.OwnerInvite, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, inv := range r.d.invites {
		if inv.MerchantID == merchantID && inv.Phone == phone && inv.Status == models.InvitePending {
			inv.InvitedBy = invitedBy
			inv.UpdatedAt = time.Now()
			r.d.invites[id] = inv
			return &inv, nil
		}
	}
	inv := models.OwnerInvite{
		ID:         models.NewID(),
		MerchantID: merchantID,
		Phone:      phone,
		Status:     models.InvitePending,
		InvitedBy:  invitedBy,
	}
	stamp(&inv.CreatedAt, &inv.UpdatedAt)
	r.d.invites[inv.ID] = inv
	return &inv, nil
}

func (r *Invites) TransitionStatus(ctx context.Context, id string, from, to models.InviteStatus) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	inv, ok := r.d.invites[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	r.d.invites[id] = inv
	return true, nil
}

func (r *Invites) RevokePending(ctx context.Context, merchantID string) (int64, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var n int64
	for id, inv := range r.d.invites {
		if inv.MerchantID == merchantID && inv.Status == models.InvitePending {
			inv.Status = models.InviteRevoked
			r.d.invites[id] = inv
			n++
		}
	}
	return n, nil
}
