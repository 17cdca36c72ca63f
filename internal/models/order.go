package models

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderReady     OrderStatus = "READY_FOR_PICKUP"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type Order struct {
	ID          string      `gorm:"primaryKey;size:36"`
	Ref         string      `gorm:"index;size:8;not null"`
	MerchantID  string      `gorm:"index;size:36;not null"`
	CustomerKey string      `gorm:"index;size:20;not null"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Total       float64     `gorm:"not null"`
	Status      OrderStatus `gorm:"index;size:20;not null;default:'PENDING'"`
	AlertCount  int         `gorm:"not null;default:0"`
	CreatedAt   time.Time   `gorm:"index"`
	UpdatedAt   time.Time
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	if o.Ref == "" {
		o.Ref = NewRef()
	}
	return nil
}

type OrderItem struct {
	ID        string  `gorm:"primaryKey;size:36"`
	OrderID   string  `gorm:"index;size:36;not null"`
	ProductID string  `gorm:"size:36;not null"`
	Name      string  `gorm:"not null"`
	Quantity  int     `gorm:"not null"`
	UnitPrice float64 `gorm:"not null"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = NewID()
	}
	return nil
}

// LineTotal is quantity times unit price.
func (i OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// MerchantCustomer is the per-store CRM row for a customer.
type MerchantCustomer struct {
	ID                string    `gorm:"primaryKey;size:36"`
	MerchantID        string    `gorm:"uniqueIndex:idx_merchant_customer;size:36;not null"`
	CustomerKey       string    `gorm:"uniqueIndex:idx_merchant_customer;size:20;not null"`
	OptIn             bool      `gorm:"default:true"`
	LastInteractionAt time.Time `gorm:"index"`
	LastBroadcastAt   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c *MerchantCustomer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}
