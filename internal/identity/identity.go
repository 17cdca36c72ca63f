// Package identity canonicalizes channel addresses into user keys.
package identity

import "strings"

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
)

// Normalize strips every non-digit, so "+27 82-555 0101" and
// "27825550101" produce the same key.
func Normalize(addr string) string {
	var b strings.Builder
	b.Grow(len(addr))
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone reports whether a normalized key looks like an E.164 number.
func ValidPhone(key string) bool {
	if len(key) < minPhoneDigits || len(key) > maxPhoneDigits {
		return false
	}
	return Normalize(key) == key
}

// NormalizeAll normalizes a list, dropping entries that end up empty.
func NormalizeAll(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if k := Normalize(a); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Contains compares addr against an allow-list after normalizing both sides.
func Contains(list []string, addr string) bool {
	key := Normalize(addr)
	if key == "" {
		return false
	}
	for _, candidate := range list {
		if Normalize(candidate) == key {
			return true
		}
	}
	return false
}
