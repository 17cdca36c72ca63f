package channel

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundEvent_Input(t *testing.T) {
	assert.Equal(t, "kitchen:ready:o1", InboundEvent{ButtonReplyID: "kitchen:ready:o1", Text: "x"}.Input())
	assert.Equal(t, "inv:edit:p1", InboundEvent{ListReplyID: "inv:edit:p1"}.Input())
	assert.Equal(t, "45.50", InboundEvent{Text: "  45.50 \n"}.Input())
	assert.Equal(t, "cover", InboundEvent{Image: &Attachment{ID: "m1", Caption: "cover"}}.Input())
}

func TestInboundEvent_ReplyID(t *testing.T) {
	assert.Equal(t, "kitchen:ready:o1", InboundEvent{ButtonReplyID: "kitchen:ready:o1", ListReplyID: "x"}.ReplyID())
	assert.Equal(t, "inv:edit:p1", InboundEvent{ListReplyID: "inv:edit:p1"}.ReplyID())
	assert.Empty(t, InboundEvent{Text: "shop:open"}.ReplyID())
}

func TestClampButtons(t *testing.T) {
	in := []Button{
		{ID: "a", Title: "Mark ready for pickup now"},
		{ID: "b", Title: "View"},
		{ID: "c", Title: "Cancel"},
		{ID: "d", Title: "Extra"},
	}
	out := ClampButtons(in)

	require.Len(t, out, 3)
	assert.Equal(t, 20, len([]rune(out[0].Title)))
	assert.True(t, strings.HasSuffix(out[0].Title, "…"))
	assert.Equal(t, "View", out[1].Title)
	assert.Equal(t, "Mark ready for pickup now", in[0].Title)
}

func TestClampSections(t *testing.T) {
	var rows []Row
	for i := 0; i < 8; i++ {
		rows = append(rows, Row{ID: "r", Title: "A product name that is far too long", Description: strings.Repeat("d", 100)})
	}
	out := ClampSections([]Section{{Title: "Burgers", Rows: rows}, {Title: "Drinks", Rows: rows}, {Title: "Empty"}})

	require.Len(t, out, 2)
	assert.Len(t, out[0].Rows, 8)
	assert.Len(t, out[1].Rows, 2)
	assert.Equal(t, MaxRowTitle, len([]rune(out[0].Rows[0].Title)))
	assert.Equal(t, MaxRowDescription, len([]rune(out[0].Rows[0].Description)))
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [{"value": {"messages": [
	    {"id": "wamid.1", "from": "27820001111", "type": "text", "text": {"body": "hi"}},
	    {"id": "wamid.2", "from": "27820001111", "type": "interactive",
	     "interactive": {"type": "button_reply", "button_reply": {"id": "kitchen:ready:o1", "title": "Ready"}}},
	    {"id": "wamid.3", "from": "27820001111", "type": "image", "image": {"id": "media-9", "mime_type": "image/jpeg"}}
	  ]}}]}]
	}`)

	events, err := ParseWebhook(body)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "hi", events[0].Input())
	assert.Equal(t, "kitchen:ready:o1", events[1].Input())
	assert.Equal(t, TypeImage, events[2].Type)
	assert.Equal(t, "media-9", events[2].Image.ID)

	_, err = ParseWebhook([]byte(`{`))
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"x"}`)
	sig := Sign("s3cret", body)

	assert.True(t, VerifySignature("s3cret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("s3cret", body, "sha1=abc"))
	assert.False(t, VerifySignature("s3cret", []byte(`{}`), sig))
}

type countingChannel struct{ sends int }

func (c *countingChannel) SendText(ctx context.Context, to, text string) error { c.sends++; return nil }
func (c *countingChannel) SendButtons(ctx context.Context, to, text string, b []Button) error {
	c.sends++
	return nil
}
func (c *countingChannel) SendList(ctx context.Context, to, text, label string, s []Section) error {
	c.sends++
	return nil
}
func (c *countingChannel) MarkRead(ctx context.Context, id string) error { return nil }

func TestLimited_StopsOnCancelledContext(t *testing.T) {
	next := &countingChannel{}
	l := NewLimited(next, 0.001, 1)

	require.NoError(t, l.SendText(context.Background(), "1", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.SendText(ctx, "1", "second")

	assert.Error(t, err)
	assert.Equal(t, 1, next.sends)
}
