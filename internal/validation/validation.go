// Package validation holds the narrow grammars wizard steps accept.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "chatstore/internal/errors"
	"chatstore/internal/identity"
)

const (
	MaxPrice      = 100000.0
	MaxNameLength = 60
	MinNameLength = 2
	MaxQuantity   = 50
	MaxBroadcast  = 900
)

var (
	ErrInvalidPrice    = apperrors.Validation("INVALID_PRICE", "Please send the price as a number, e.g. 45.50")
	ErrPriceRange      = apperrors.Validation("PRICE_RANGE", fmt.Sprintf("Price must be more than 0 and at most %.0f.", MaxPrice))
	ErrInvalidHours    = apperrors.Validation("INVALID_HOURS", "Please send hours like 08:00 - 17:00, or 'closed'.")
	ErrInvalidPhone    = apperrors.Validation("INVALID_PHONE", "Please send a full phone number with country code, e.g. +27821234567.")
	ErrInvalidName     = apperrors.Validation("INVALID_NAME", fmt.Sprintf("Please use between %d and %d characters.", MinNameLength, MaxNameLength))
	ErrInvalidQuantity = apperrors.Validation("INVALID_QUANTITY", fmt.Sprintf("Please send a quantity from 1 to %d.", MaxQuantity))
	ErrInvalidVariant  = apperrors.Validation("INVALID_VARIANT", "Please send a variant like: Large / Red | 55.00")
	ErrInvalidHandle   = apperrors.Validation("INVALID_HANDLE", "Handles may only contain letters and numbers.")
	ErrInvalidMessage  = apperrors.Validation("INVALID_MESSAGE", fmt.Sprintf("Messages must be between 1 and %d characters.", MaxBroadcast))
)

var (
	priceRegex = regexp.MustCompile(`^(?:R\s*)?(\d{1,6}(?:[.,]\d{1,2})?)$`)
	hoursRegex = regexp.MustCompile(`^([01]?\d|2[0-3])[:h.]([0-5]\d)\s*(?:-|to|–)\s*([01]?\d|2[0-3])[:h.]([0-5]\d)$`)
)

// ParsePrice accepts "45", "45.50", "45,50" and "R45.50".
func ParsePrice(input string) (float64, error) {
	m := priceRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return 0, ErrInvalidPrice
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	if v <= 0 || v > MaxPrice {
		return 0, ErrPriceRange
	}
	return v, nil
}

// Hours is a daily trading window. Closed means no trading that day.
type Hours struct {
	Open   string
	Close  string
	Closed bool
}

// ParseHours accepts "HH:MM - HH:MM" or the literal "closed".
func ParseHours(input string) (Hours, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "closed" {
		return Hours{Closed: true}, nil
	}
	m := hoursRegex.FindStringSubmatch(s)
	if m == nil {
		return Hours{}, ErrInvalidHours
	}
	openH, _ := strconv.Atoi(m[1])
	closeH, _ := strconv.Atoi(m[3])
	h := Hours{
		Open:  fmt.Sprintf("%02d:%s", openH, m[2]),
		Close: fmt.Sprintf("%02d:%s", closeH, m[4]),
	}
	if h.Close <= h.Open {
		return Hours{}, ErrInvalidHours
	}
	return h, nil
}

// ParsePhone normalizes and checks an E.164-like number.
func ParsePhone(input string) (string, error) {
	key := identity.Normalize(input)
	if !identity.ValidPhone(key) {
		return "", ErrInvalidPhone
	}
	return key, nil
}

// ParseName trims and length-checks a free text name.
func ParseName(input string) (string, error) {
	name := strings.Join(strings.Fields(input), " ")
	n := len([]rune(name))
	if n < MinNameLength || n > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// ParseQuantity accepts 1..MaxQuantity.
func ParseQuantity(input string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || q < 1 || q > MaxQuantity {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// Variant is a parsed "size / color / sku | price" line.
type Variant struct {
	Size  string
	Color string
	SKU   string
	Price float64
}

// ParseVariant parses "Large / Red / SKU12 | 55.00". Color and SKU are optional.
func ParseVariant(input string) (Variant, error) {
	left, right, ok := strings.Cut(input, "|")
	if !ok {
		return Variant{}, ErrInvalidVariant
	}
	price, err := ParsePrice(right)
	if err != nil {
		return Variant{}, err
	}
	var parts []string
	for _, p := range strings.Split(left, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 || len(parts) > 3 {
		return Variant{}, ErrInvalidVariant
	}
	v := Variant{Price: price, Size: parts[0]}
	if len(parts) > 1 {
		v.Color = parts[1]
	}
	if len(parts) > 2 {
		v.SKU = parts[2]
	}
	return v, nil
}

// ParseStoreName parses "Store name" or "Store name | handle".
func ParseStoreName(input string) (name, handle string, err error) {
	left, right, hasHandle := strings.Cut(input, "|")
	if name, err = ParseName(left); err != nil {
		return "", "", err
	}
	if !hasHandle {
		return name, "", nil
	}
	handle = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(right), "@")))
	if handle == "" {
		return name, "", nil
	}
	for _, r := range handle {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return "", "", ErrInvalidHandle
		}
	}
	return name, handle, nil
}

// ParseMessage checks a broadcast body.
func ParseMessage(input string) (string, error) {
	msg := strings.TrimSpace(input)
	if msg == "" || len([]rune(msg)) > MaxBroadcast {
		return "", ErrInvalidMessage
	}
	return msg, nil
}
