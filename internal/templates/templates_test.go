package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestFor(t *testing.T) {
	tests := []struct {
		locale string
		want   language.Tag
	}{
		{"en", language.English},
		{"af", language.Afrikaans},
		{"af-ZA", language.Afrikaans},
		{"en-ZA", language.English},
		{"", language.English},
		{"zz-not-a-tag-!!", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, For(tt.locale).Tag)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("af"))
	assert.True(t, Supported("en"))
	assert.False(t, Supported("bogus!"))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "🛍️ Your order #AB12CD from Joe's Grill is ready for pickup!", For("en").OrderReady("AB12CD", "Joe's Grill"))
	assert.Contains(t, For("af").OrderPlaced("AB12CD", "Joe's Grill", 85), "R85.00")
	assert.Equal(t, "Sale today\n\nReply STOP to stop receiving messages from Joe's Grill.", For("en").WithOptOut("Sale today", "Joe's Grill"))
}
