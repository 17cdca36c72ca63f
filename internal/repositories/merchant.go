package repositories

import (
	"context"

	"chatstore/internal/models"

	"gorm.io/gorm"
)

type merchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) MerchantRepository {
	return &merchantRepository{db: db}
}

func (r *merchantRepository) first(ctx context.Context, query string, arg interface{}) (*models.Merchant, error) {
	var m models.Merchant
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *merchantRepository) GetByID(ctx context.Context, id string) (*models.Merchant, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *merchantRepository) GetByHandle(ctx context.Context, handle string) (*models.Merchant, error) {
	return r.first(ctx, "handle = ?", handle)
}

func (r *merchantRepository) GetByAdminHandle(ctx context.Context, handle string) (*models.Merchant, error) {
	return r.first(ctx, "admin_handle = ?", handle)
}

func (r *merchantRepository) FindOnboardingByOwner(ctx context.Context, ownerKey string) (*models.Merchant, error) {
	var m models.Merchant
	err := r.db.WithContext(ctx).
		Where("owner_key = ? AND status = ?", ownerKey, models.MerchantOnboarding).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *merchantRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Merchant{}).Where(column+" = ?", value).Count(&count).Error
	return count > 0, err
}

func (r *merchantRepository) HandleExists(ctx context.Context, handle string) (bool, error) {
	return r.exists(ctx, "handle", handle)
}

func (r *merchantRepository) AdminHandleExists(ctx context.Context, handle string) (bool, error) {
	return r.exists(ctx, "admin_handle", handle)
}

func (r *merchantRepository) List(ctx context.Context, limit int) ([]models.Merchant, error) {
	var merchants []models.Merchant
	err := r.db.WithContext(ctx).Order("created_at DESC").Scopes(limitTo(limit)).Find(&merchants).Error
	return merchants, err
}

func (r *merchantRepository) Create(ctx context.Context, m *models.Merchant) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *merchantRepository) Update(ctx context.Context, m *models.Merchant) error {
	return r.db.WithContext(ctx).Save(m).Error
}

type ownerRepository struct {
	db *gorm.DB
}

func NewOwnerRepository(db *gorm.DB) OwnerRepository {
	return &ownerRepository{db: db}
}

func (r *ownerRepository) ListActiveByUser(ctx context.Context, userKey string) ([]models.MerchantOwner, error) {
	var owners []models.MerchantOwner
	err := r.db.WithContext(ctx).
		Where("user_key = ? AND active = ?", userKey, true).
		Order("created_at ASC").
		Find(&owners).Error
	return owners, err
}

func (r *ownerRepository) ListActiveByMerchant(ctx context.Context, merchantID string) ([]models.MerchantOwner, error) {
	var owners []models.MerchantOwner
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND active = ?", merchantID, true).
		Order("created_at ASC").
		Find(&owners).Error
	return owners, err
}

func (r *ownerRepository) Activate(ctx context.Context, merchantID, userKey string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MerchantOwner{}).
			Where("merchant_id = ? AND user_key = ?", merchantID, userKey).
			Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&models.MerchantOwner{MerchantID: merchantID, UserKey: userKey, Active: true}).Error
	})
}

func (r *ownerRepository) Deactivate(ctx context.Context, merchantID, userKey string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MerchantOwner{}).
		Where("merchant_id = ? AND user_key = ? AND active = ?", merchantID, userKey, true).
		Update("active", false)
	return res.RowsAffected > 0, res.Error
}

func (r *ownerRepository) DeactivateAll(ctx context.Context, merchantID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.MerchantOwner{}).
		Where("merchant_id = ? AND active = ?", merchantID, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}
