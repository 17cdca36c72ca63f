package models

import (
	"strings"
	"time"
)

type Mode string

const (
	ModeCustomer Mode = "CUSTOMER"
	ModeMerchant Mode = "MERCHANT"
)

// StepKind names a wizard position. The part before the dot is the
// flow that owns it; flows never act on another flow's steps.
type StepKind string

const (
	StepIdle StepKind = ""

	StepOnboardingField StepKind = "onboarding.field"

	StepProductName      StepKind = "inventory.name"
	StepProductPrice     StepKind = "inventory.price"
	StepProductImage     StepKind = "inventory.image"
	StepProductPreview   StepKind = "inventory.preview"
	StepProductEditPrice StepKind = "inventory.edit_price"
	StepProductVariant   StepKind = "inventory.variant"

	StepHours      StepKind = "settings.hours"
	StepOwnerPhone StepKind = "settings.owner_phone"

	StepInviteName   StepKind = "admin.invite_name"
	StepInvitePhone  StepKind = "admin.invite_phone"
	StepRevokeHandle StepKind = "admin.revoke"

	StepBroadcastCompose StepKind = "broadcast.compose"
	StepBroadcastConfirm StepKind = "broadcast.confirm"

	StepQuantity StepKind = "shop.quantity"
)

// Step is the tagged wizard state. Ref carries the entity the step works
// on (draft product, order, ...) and Field a sub-position inside the step.
type Step struct {
	Kind  StepKind `json:"kind,omitempty"`
	Ref   string   `json:"ref,omitempty"`
	Field string   `json:"field,omitempty"`
}

func Idle() Step { return Step{} }

func AwaitingField(field string) Step { return Step{Kind: StepOnboardingField, Field: field} }

func AwaitingProductName() Step { return Step{Kind: StepProductName} }

func AwaitingPrice(draftID string) Step { return Step{Kind: StepProductPrice, Ref: draftID} }

func AwaitingImage(draftID string) Step { return Step{Kind: StepProductImage, Ref: draftID} }

func ConfirmPreview(draftID string) Step { return Step{Kind: StepProductPreview, Ref: draftID} }

func EditingPrice(productID string) Step { return Step{Kind: StepProductEditPrice, Ref: productID} }

func AwaitingVariant(productID string) Step { return Step{Kind: StepProductVariant, Ref: productID} }

func AwaitingHours(day string) Step { return Step{Kind: StepHours, Field: day} }

func AwaitingOwnerPhone() Step { return Step{Kind: StepOwnerPhone} }

func AwaitingInviteName() Step { return Step{Kind: StepInviteName} }

func AwaitingInvitePhone() Step { return Step{Kind: StepInvitePhone} }

func AwaitingRevokeHandle() Step { return Step{Kind: StepRevokeHandle} }

func ComposingBroadcast() Step { return Step{Kind: StepBroadcastCompose} }

func ConfirmBroadcast() Step { return Step{Kind: StepBroadcastConfirm} }

func AwaitingQuantity(productID string) Step { return Step{Kind: StepQuantity, Ref: productID} }

func (s Step) IsIdle() bool { return s.Kind == StepIdle }

// Flow returns the owning flow namespace, "" when idle.
func (s Step) Flow() string {
	k := string(s.Kind)
	if i := strings.IndexByte(k, '.'); i >= 0 {
		return k[:i]
	}
	return k
}

// Payload keys shared between steps.
const (
	PayloadStore        = "store"
	PayloadInviteName   = "invite_name"
	PayloadInviteHandle = "invite_handle"
	PayloadBroadcast    = "broadcast"
)

// Session is the per-user conversation state keyed by identity key.
type Session struct {
	Key       string `gorm:"primaryKey;size:20"`
	Mode      Mode   `gorm:"size:16;not null;default:'CUSTOMER'"`
	Step      Step   `gorm:"serializer:json;type:jsonb"`
	Payload   JSON   `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession returns an idle customer session.
func NewSession(key string) *Session {
	return &Session{Key: key, Mode: ModeCustomer, Step: Idle()}
}

// Enter replaces the current step.
func (s *Session) Enter(step Step) {
	s.Step = step
}

// ClearStep returns to idle and drops wizard payload. The browsed store
// survives because it is navigation state, not wizard state.
func (s *Session) ClearStep() {
	s.Step = Idle()
	store := s.Payload.String(PayloadStore)
	s.Payload = nil
	if store != "" {
		s.Payload = JSON{PayloadStore: store}
	}
}

// Set stores a payload value.
func (s *Session) Set(key, value string) {
	if s.Payload == nil {
		s.Payload = JSON{}
	}
	s.Payload[key] = value
}

func (s *Session) Get(key string) string {
	return s.Payload.String(key)
}
