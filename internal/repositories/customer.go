package repositories

import (
	"context"
	"time"

	"chatstore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Touch(ctx context.Context, merchantID, customerKey string, at time.Time) (*models.MerchantCustomer, error) {
	c := &models.MerchantCustomer{
		MerchantID:        merchantID,
		CustomerKey:       customerKey,
		OptIn:             true,
		LastInteractionAt: at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "customer_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_interaction_at", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return nil, err
	}
	var stored models.MerchantCustomer
	err = r.db.WithContext(ctx).
		Where("merchant_id = ? AND customer_key = ?", merchantID, customerKey).
		First(&stored).Error
	return &stored, notFound(err)
}

func (r *customerRepository) SetOptIn(ctx context.Context, merchantID, customerKey string, optIn bool) error {
	res := r.db.WithContext(ctx).Model(&models.MerchantCustomer{}).
		Where("merchant_id = ? AND customer_key = ?", merchantID, customerKey).
		Update("opt_in", optIn)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *customerRepository) SetOptInAll(ctx context.Context, customerKey string, optIn bool) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.MerchantCustomer{}).
		Where("customer_key = ?", customerKey).
		Update("opt_in", optIn)
	return res.RowsAffected, res.Error
}

func (r *customerRepository) ListOptedIn(ctx context.Context, merchantID string) ([]models.MerchantCustomer, error) {
	var rows []models.MerchantCustomer
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND opt_in = ?", merchantID, true).
		Order("last_interaction_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *customerRepository) MarkBroadcast(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.MerchantCustomer{}).
		Where("id = ?", id).
		Update("last_broadcast_at", at).Error
}
