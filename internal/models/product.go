package models

import (
	"time"

	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductDraft  ProductStatus = "DRAFT"
	ProductActive ProductStatus = "ACTIVE"
)

type Product struct {
	ID         string        `gorm:"primaryKey;size:36"`
	MerchantID string        `gorm:"index;size:36;not null"`
	Name       string        `gorm:"not null"`
	Price      float64       `gorm:"not null;default:0"`
	InStock    bool          `gorm:"default:true"`
	Status     ProductStatus `gorm:"size:16;not null;default:'DRAFT'"`
	ImageRef   string
	Variants   []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// DisplayPrice returns the lowest variant price when variants exist
// (from is true) and the base price otherwise.
func (p *Product) DisplayPrice() (price float64, from bool) {
	if len(p.Variants) == 0 {
		return p.Price, false
	}
	lowest := p.Variants[0].Price
	for _, v := range p.Variants[1:] {
		if v.Price < lowest {
			lowest = v.Price
		}
	}
	return lowest, true
}

// Orderable reports whether customers can buy the product.
func (p *Product) Orderable() bool {
	return p.Status == ProductActive && p.InStock
}

type ProductVariant struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProductID string `gorm:"index;size:36;not null"`
	Size      string
	Color     string
	SKU       string
	Price     float64 `gorm:"not null"`
	CreatedAt time.Time
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = NewID()
	}
	return nil
}

// Label joins the non-empty descriptive parts.
func (v ProductVariant) Label() string {
	label := ""
	for _, part := range []string{v.Size, v.Color, v.SKU} {
		if part == "" {
			continue
		}
		if label != "" {
			label += " / "
		}
		label += part
	}
	return label
}
