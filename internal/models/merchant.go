package models

import (
	"time"

	"gorm.io/gorm"
)

type MerchantStatus string

const (
	MerchantOnboarding MerchantStatus = "ONBOARDING"
	MerchantActive     MerchantStatus = "ACTIVE"
)

// Onboarding fields in the order the wizard asks for them.
const (
	FieldTradingName  = "trading_name"
	FieldLegalName    = "legal_name"
	FieldRegistration = "registration_number"
	FieldBankName     = "bank_name"
	FieldBankAccount  = "bank_account"
)

var OnboardingFields = []string{
	FieldTradingName,
	FieldLegalName,
	FieldRegistration,
	FieldBankName,
	FieldBankAccount,
}

type Merchant struct {
	ID                 string `gorm:"primaryKey;size:36"`
	OwnerKey           string `gorm:"index;size:20;not null"`
	TradingName        string
	LegalName          string
	RegistrationNumber string
	BankName           string
	BankAccount        string

	// Hours are "HH:MM"; an empty open time means closed that day.
	WeekdayOpen   string `gorm:"size:5;default:'08:00'"`
	WeekdayClose  string `gorm:"size:5;default:'17:00'"`
	SaturdayOpen  string `gorm:"size:5;default:'09:00'"`
	SaturdayClose string `gorm:"size:5;default:'13:00'"`
	// SundayOpen reuses the Saturday hours.
	SundayOpen   bool `gorm:"default:false"`
	ManualClosed bool `gorm:"default:false"`

	Status      MerchantStatus `gorm:"size:16;not null;default:'ONBOARDING'"`
	Handle      string         `gorm:"uniqueIndex;size:64;not null"`
	AdminHandle string         `gorm:"uniqueIndex;size:64;not null"`
	Locale      string         `gorm:"size:8;default:'en'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

// DisplayName falls back to the handle until a trading name is set.
func (m *Merchant) DisplayName() string {
	if m.TradingName != "" {
		return m.TradingName
	}
	return m.Handle
}

// Field returns the value of an onboarding field.
func (m *Merchant) Field(name string) string {
	switch name {
	case FieldTradingName:
		return m.TradingName
	case FieldLegalName:
		return m.LegalName
	case FieldRegistration:
		return m.RegistrationNumber
	case FieldBankName:
		return m.BankName
	case FieldBankAccount:
		return m.BankAccount
	}
	return ""
}

// SetField assigns an onboarding field; unknown names are ignored.
func (m *Merchant) SetField(name, value string) {
	switch name {
	case FieldTradingName:
		m.TradingName = value
	case FieldLegalName:
		m.LegalName = value
	case FieldRegistration:
		m.RegistrationNumber = value
	case FieldBankName:
		m.BankName = value
	case FieldBankAccount:
		m.BankAccount = value
	}
}

// MissingField returns the first unset onboarding field, or "".
func (m *Merchant) MissingField() string {
	for _, f := range OnboardingFields {
		if m.Field(f) == "" {
			return f
		}
	}
	return ""
}

// HoursFor returns the opening and closing time for the weekday of t.
// ok is false when the store does not trade that day.
func (m *Merchant) HoursFor(t time.Time) (opens, closes string, ok bool) {
	switch t.Weekday() {
	case time.Sunday:
		if !m.SundayOpen {
			return "", "", false
		}
		opens, closes = m.SaturdayOpen, m.SaturdayClose
	case time.Saturday:
		opens, closes = m.SaturdayOpen, m.SaturdayClose
	default:
		opens, closes = m.WeekdayOpen, m.WeekdayClose
	}
	return opens, closes, opens != "" && closes != ""
}

// IsOpen reports whether the store takes orders at t.
func (m *Merchant) IsOpen(t time.Time) bool {
	if m.ManualClosed || m.Status != MerchantActive {
		return false
	}
	opens, closes, ok := m.HoursFor(t)
	if !ok {
		return false
	}
	now := t.Format("15:04")
	return now >= opens && now < closes
}

// ApplyDefaultHours fills unset trading hours.
func (m *Merchant) ApplyDefaultHours() {
	if m.WeekdayOpen == "" && m.WeekdayClose == "" {
		m.WeekdayOpen, m.WeekdayClose = "08:00", "17:00"
	}
	if m.SaturdayOpen == "" && m.SaturdayClose == "" {
		m.SaturdayOpen, m.SaturdayClose = "09:00", "13:00"
	}
	if m.Locale == "" {
		m.Locale = "en"
	}
}

// MerchantOwner grants a user key merchant-mode access to a store.
type MerchantOwner struct {
	ID         string `gorm:"primaryKey;size:36"`
	MerchantID string `gorm:"index;size:36;not null"`
	UserKey    string `gorm:"index;size:20;not null"`
	Active     bool   `gorm:"default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (o *MerchantOwner) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	return nil
}

type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteDeclined InviteStatus = "DECLINED"
	InviteRevoked  InviteStatus = "REVOKED"
)

// OwnerInvite is a pending offer for a phone to co-own a store.
type OwnerInvite struct {
	ID         string       `gorm:"primaryKey;size:36"`
	MerchantID string       `gorm:"index;size:36;not null"`
	Phone      string       `gorm:"index;size:20;not null"`
	Status     InviteStatus `gorm:"size:16;not null;default:'PENDING'"`
	InvitedBy  string       `gorm:"size:20"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (i *OwnerInvite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = NewID()
	}
	return nil
}
