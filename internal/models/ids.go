package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random opaque record id.
func NewID() string {
	return uuid.NewString()
}

// NewRef returns a short upper-case reference customers can type.
func NewRef() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:6])
}
