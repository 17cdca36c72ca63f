package repositories

import (
	"context"

	"chatstore/internal/models"

	"gorm.io/gorm"
)

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Preload("Variants").Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *productRepository) ListByMerchant(ctx context.Context, merchantID string, statuses ...models.ProductStatus) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Preload("Variants").Where("merchant_id = ?", merchantID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var products []models.Product
	err := q.Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update writes the product columns only; variants are managed by AddVariant.
func (r *productRepository) Update(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Omit("Variants").Save(p).Error
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func (r *productRepository) AddVariant(ctx context.Context, v *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(v).Error
}
