// Package repositories provides the record store behind every component.
// Each interface is injected into the component that owns the records;
// gorm implementations live next to them and an in-memory Store for tests
// in the memory subpackage.
package repositories

import (
	"context"
	"time"

	"chatstore/internal/models"
)

type SessionRepository interface {
	Get(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
}

type MerchantRepository interface {
	GetByID(ctx context.Context, id string) (*models.Merchant, error)
	GetByHandle(ctx context.Context, handle string) (*models.Merchant, error)
	GetByAdminHandle(ctx context.Context, handle string) (*models.Merchant, error)
	// FindOnboardingByOwner returns the ONBOARDING store invited for a phone.
	FindOnboardingByOwner(ctx context.Context, ownerKey string) (*models.Merchant, error)
	HandleExists(ctx context.Context, handle string) (bool, error)
	AdminHandleExists(ctx context.Context, handle string) (bool, error)
	List(ctx context.Context, limit int) ([]models.Merchant, error)
	Create(ctx context.Context, m *models.Merchant) error
	Update(ctx context.Context, m *models.Merchant) error
}

type OwnerRepository interface {
	ListActiveByUser(ctx context.Context, userKey string) ([]models.MerchantOwner, error)
	ListActiveByMerchant(ctx context.Context, merchantID string) ([]models.MerchantOwner, error)
	// Activate creates or re-activates the owner row.
	Activate(ctx context.Context, merchantID, userKey string) error
	Deactivate(ctx context.Context, merchantID, userKey string) (bool, error)
	DeactivateAll(ctx context.Context, merchantID string) (int64, error)
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (*models.Product, error)
	ListByMerchant(ctx context.Context, merchantID string, statuses ...models.ProductStatus) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	AddVariant(ctx context.Context, v *models.ProductVariant) error
}

type OrderRepository interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	GetByRef(ctx context.Context, merchantID, ref string) (*models.Order, error)
	Create(ctx context.Context, o *models.Order) error
	ListByMerchant(ctx context.Context, merchantID string, statuses []models.OrderStatus, limit int) ([]models.Order, error)
	ListByCustomer(ctx context.Context, customerKey string, limit int) ([]models.Order, error)
	// TransitionStatus moves the order to `to` only when its status is one
	// of `from`. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error)
	// ListStale returns orders in statuses created before `before` whose
	// alert count is below maxAlerts, oldest first.
	ListStale(ctx context.Context, statuses []models.OrderStatus, before time.Time, maxAlerts, limit int) ([]models.Order, error)
	// IncrementAlertCount bumps alert_count while it is below max.
	IncrementAlertCount(ctx context.Context, id string, max int) (bool, error)
}

type CustomerRepository interface {
	// Touch upserts the CRM row and stamps the last interaction.
	Touch(ctx context.Context, merchantID, customerKey string, at time.Time) (*models.MerchantCustomer, error)
	SetOptIn(ctx context.Context, merchantID, customerKey string, optIn bool) error
	SetOptInAll(ctx context.Context, customerKey string, optIn bool) (int64, error)
	// ListOptedIn returns opted-in rows, most recent interaction first.
	ListOptedIn(ctx context.Context, merchantID string) ([]models.MerchantCustomer, error)
	MarkBroadcast(ctx context.Context, id string, at time.Time) error
}

type InviteRepository interface {
	Get(ctx context.Context, id string) (*models.OwnerInvite, error)
	// Refresh returns the pending invite for the pair, creating it when
	// none exists.
	Refresh(ctx context.Context, merchantID, phone, invitedBy string) (*models.OwnerInvite, error)
	TransitionStatus(ctx context.Context, id string, from, to models.InviteStatus) (bool, error)
	RevokePending(ctx context.Context, merchantID string) (int64, error)
}

// Store bundles every repository.
type Store struct {
	Sessions  SessionRepository
	Merchants MerchantRepository
	Owners    OwnerRepository
	Products  ProductRepository
	Orders    OrderRepository
	Customers CustomerRepository
	Invites   InviteRepository
}
