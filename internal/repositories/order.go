package repositories

import (
	"context"
	"time"

	"chatstore/internal/models"

	"gorm.io/gorm"
)

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *orderRepository) GetByRef(ctx context.Context, merchantID, ref string) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("merchant_id = ? AND ref = ?", merchantID, ref).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// Create inserts the order and its items in one transaction.
func (r *orderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepository) ListByMerchant(ctx context.Context, merchantID string, statuses []models.OrderStatus, limit int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items").Where("merchant_id = ?", merchantID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var orders []models.Order
	err := q.Order("created_at ASC").Scopes(limitTo(limit)).Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerKey string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("customer_key = ?", customerKey).
		Order("created_at DESC").
		Scopes(limitTo(limit)).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) TransitionStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

func (r *orderRepository) ListStale(ctx context.Context, statuses []models.OrderStatus, before time.Time, maxAlerts, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ? AND alert_count < ?", statuses, before, maxAlerts).
		Order("created_at ASC").
		Scopes(limitTo(limit)).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) IncrementAlertCount(ctx context.Context, id string, max int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND alert_count < ?", id, max).
		UpdateColumn("alert_count", gorm.Expr("alert_count + 1"))
	return res.RowsAffected == 1, res.Error
}
