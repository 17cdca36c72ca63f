package dialog

import (
	"context"
	"strconv"
	"strings"
)

const maxHandleLength = 30

// Slugify lowercases name and keeps only letters and digits.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		if b.Len() == maxHandleLength {
			break
		}
	}
	if b.Len() == 0 {
		return "store"
	}
	return b.String()
}

// UniqueHandle returns base, or base followed by the first free numeric
// suffix starting at 2.
func UniqueHandle(ctx context.Context, base string, exists func(context.Context, string) (bool, error)) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(n)
	}
}
