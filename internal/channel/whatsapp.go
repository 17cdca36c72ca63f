package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatstore/internal/config"

	"github.com/gofiber/fiber/v2"
)

// WhatsApp sends messages through the WhatsApp Cloud API.
type WhatsApp struct {
	baseURL       string
	phoneNumberID string
	token         string
	timeout       time.Duration
}

func NewWhatsApp(cfg config.WhatsAppConfig) *WhatsApp {
	return &WhatsApp{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		timeout:       cfg.Timeout,
	}
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to,omitempty"`
	Type             string       `json:"type,omitempty"`
	Text             *textBody    `json:"text,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
	Status           string       `json:"status,omitempty"`
	MessageID        string       `json:"message_id,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type interactive struct {
	Type   string            `json:"type"`
	Body   textBody          `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveAction struct {
	Buttons  []replyButton `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []Section     `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply Button `json:"reply"`
}

func (w *WhatsApp) SendText(ctx context.Context, to, text string) error {
	return w.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             TypeText,
		Text:             &textBody{Body: text},
	})
}

func (w *WhatsApp) SendButtons(ctx context.Context, to, text string, buttons []Button) error {
	clamped := ClampButtons(buttons)
	replies := make([]replyButton, len(clamped))
	for i, b := range clamped {
		replies[i] = replyButton{Type: "reply", Reply: b}
	}
	return w.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             TypeInteractive,
		Interactive: &interactive{
			Type:   "button",
			Body:   textBody{Body: Truncate(text, MaxInteractiveBody)},
			Action: interactiveAction{Buttons: replies},
		},
	})
}

func (w *WhatsApp) SendList(ctx context.Context, to, text, buttonLabel string, sections []Section) error {
	return w.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             TypeInteractive,
		Interactive: &interactive{
			Type: "list",
			Body: textBody{Body: Truncate(text, MaxInteractiveBody)},
			Action: interactiveAction{
				Button:   Truncate(buttonLabel, MaxListButtonLabel),
				Sections: ClampSections(sections),
			},
		},
	})
}

func (w *WhatsApp) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	return w.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
}

func (w *WhatsApp) post(ctx context.Context, msg outboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)

	agent := fiber.Post(url)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+w.token)
	agent.JSON(msg)
	if w.timeout > 0 {
		agent.Timeout(w.timeout)
	}
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("whatsapp: send %s: %w", msg.Type, errs[0])
	}
	if code >= fiber.StatusBadRequest {
		return fmt.Errorf("whatsapp: send %s: status %d: %s", msg.Type, code, Truncate(string(body), 200))
	}
	return nil
}
