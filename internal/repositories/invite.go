package repositories

import (
	"context"
	"errors"

	"chatstore/internal/models"

	"gorm.io/gorm"
)

type inviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Get(ctx context.Context, id string) (*models.OwnerInvite, error) {
	var inv models.OwnerInvite
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (r *inviteRepository) Refresh(ctx context.Context, merchantID, phone, invitedBy string) (*models.OwnerInvite, error) {
	var inv models.OwnerInvite
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("merchant_id = ? AND phone = ? AND status = ?", merchantID, phone, models.InvitePending).
			First(&inv).Error
		if err == nil {
			inv.InvitedBy = invitedBy
			return tx.Save(&inv).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		inv = models.OwnerInvite{
			MerchantID: merchantID,
			Phone:      phone,
			Status:     models.InvitePending,
			InvitedBy:  invitedBy,
		}
		return tx.Create(&inv).Error
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inviteRepository) TransitionStatus(ctx context.Context, id string, from, to models.InviteStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OwnerInvite{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *inviteRepository) RevokePending(ctx context.Context, merchantID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.OwnerInvite{}).
		Where("merchant_id = ? AND status = ?", merchantID, models.InvitePending).
		Update("status", models.InviteRevoked)
	return res.RowsAffected, res.Error
}

