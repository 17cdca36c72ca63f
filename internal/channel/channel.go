// Package channel is the outbound and inbound message surface. The
// dialog engine only sees the Channel interface; WhatsApp is the
// production implementation.
package channel

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	MaxButtons         = 3
	MaxRows            = 10
	MaxButtonTitle     = 20
	MaxRowTitle        = 24
	MaxRowDescription  = 72
	MaxSectionTitle    = 24
	MaxListButtonLabel = 20
	MaxInteractiveBody = 1024
)

type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Section struct {
	Title string `json:"title,omitempty"`
	Rows  []Row  `json:"rows"`
}

// Attachment references media held by the provider.
type Attachment struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

const (
	TypeText        = "text"
	TypeInteractive = "interactive"
	TypeImage       = "image"
)

// InboundEvent is one message received from a user.
type InboundEvent struct {
	MessageID     string      `json:"message_id"`
	From          string      `json:"from"`
	Type          string      `json:"type"`
	Text          string      `json:"text,omitempty"`
	ButtonReplyID string      `json:"button_reply_id,omitempty"`
	ListReplyID   string      `json:"list_reply_id,omitempty"`
	Image         *Attachment `json:"image,omitempty"`
}

// ReplyID is the id of the tapped button or list row, or "" for typed input.
func (e InboundEvent) ReplyID() string {
	if e.ButtonReplyID != "" {
		return e.ButtonReplyID
	}
	return e.ListReplyID
}

// Input is the reply id of an interactive message, or the trimmed text.
func (e InboundEvent) Input() string {
	if e.ButtonReplyID != "" {
		return e.ButtonReplyID
	}
	if e.ListReplyID != "" {
		return e.ListReplyID
	}
	if e.Image != nil && e.Text == "" {
		return strings.TrimSpace(e.Image.Caption)
	}
	return strings.TrimSpace(e.Text)
}

type Channel interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, text string, buttons []Button) error
	SendList(ctx context.Context, to, text, buttonLabel string, sections []Section) error
	MarkRead(ctx context.Context, messageID string) error
}

// Truncate shortens s to max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-1]) + "…"
}

// ClampButtons keeps the first MaxButtons and truncates their titles.
func ClampButtons(buttons []Button) []Button {
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}
	out := make([]Button, len(buttons))
	for i, b := range buttons {
		out[i] = Button{ID: b.ID, Title: Truncate(b.Title, MaxButtonTitle)}
	}
	return out
}

// ClampSections truncates titles and caps the total row count across
// all sections. Sections left without rows are dropped.
func ClampSections(sections []Section) []Section {
	budget := MaxRows
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if budget == 0 {
			break
		}
		rows := s.Rows
		if len(rows) > budget {
			rows = rows[:budget]
		}
		if len(rows) == 0 {
			continue
		}
		budget -= len(rows)
		clamped := Section{Title: Truncate(s.Title, MaxSectionTitle), Rows: make([]Row, len(rows))}
		for i, r := range rows {
			clamped.Rows[i] = Row{
				ID:          r.ID,
				Title:       Truncate(r.Title, MaxRowTitle),
				Description: Truncate(r.Description, MaxRowDescription),
			}
		}
		out = append(out, clamped)
	}
	return out
}
