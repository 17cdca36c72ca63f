package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chatstore/internal/errors"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr error
	}{
		{"45.50", 45.50, nil},
		{"45", 45, nil},
		{"45,5", 45.5, nil},
		{"R 120", 120, nil},
		{"abc", 0, ErrInvalidPrice},
		{"0", 0, ErrPriceRange},
		{"100001", 0, ErrPriceRange},
		{"1234567", 0, ErrInvalidPrice},
		{"-5", 0, ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseHours(t *testing.T) {
	h, err := ParseHours("8:00 - 17:30")
	require.NoError(t, err)
	assert.Equal(t, Hours{Open: "08:00", Close: "17:30"}, h)

	h, err = ParseHours(" Closed ")
	require.NoError(t, err)
	assert.True(t, h.Closed)

	_, err = ParseHours("17:00 - 08:00")
	assert.ErrorIs(t, err, ErrInvalidHours)

	_, err = ParseHours("all day")
	assert.ErrorIs(t, err, ErrInvalidHours)
}

func TestParsePhone(t *testing.T) {
	key, err := ParsePhone("+27 82 123 4567")
	require.NoError(t, err)
	assert.Equal(t, "27821234567", key)

	_, err = ParsePhone("12345")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestParseName(t *testing.T) {
	name, err := ParseName("  Joe's   Grill ")
	require.NoError(t, err)
	assert.Equal(t, "Joe's Grill", name)

	_, err = ParseName("J")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = ParseName(strings.Repeat("x", MaxNameLength+1))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("3")
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	for _, bad := range []string{"0", "51", "two"} {
		_, err := ParseQuantity(bad)
		assert.ErrorIs(t, err, ErrInvalidQuantity, bad)
	}
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("Large / Red / SKU12 | 55.00")
	require.NoError(t, err)
	assert.Equal(t, Variant{Size: "Large", Color: "Red", SKU: "SKU12", Price: 55}, v)

	v, err = ParseVariant("Small|30")
	require.NoError(t, err)
	assert.Equal(t, "Small", v.Size)
	assert.Equal(t, 30.0, v.Price)

	_, err = ParseVariant("Large 55")
	assert.ErrorIs(t, err, ErrInvalidVariant)

	_, err = ParseVariant("Large | free")
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestParseStoreName(t *testing.T) {
	name, handle, err := ParseStoreName("BBQ Place | @BBQ1")
	require.NoError(t, err)
	assert.Equal(t, "BBQ Place", name)
	assert.Equal(t, "bbq1", handle)

	name, handle, err = ParseStoreName("BBQ Place")
	require.NoError(t, err)
	assert.Equal(t, "BBQ Place", name)
	assert.Empty(t, handle)

	_, _, err = ParseStoreName("BBQ Place | bbq-place")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}
