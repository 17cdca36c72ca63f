package repositories

import (
	"context"

	"chatstore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Get(ctx context.Context, key string) (*models.Session, error) {
	var s models.Session
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *sessionRepository) Save(ctx context.Context, s *models.Session) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "step", "payload", "updated_at"}),
	}).Create(s).Error
}
