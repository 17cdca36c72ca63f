package handlers

import (
	"context"
	"log"

	"chatstore/internal/channel"
	"chatstore/internal/config"
	"chatstore/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// EventSink accepts a parsed inbound event. It must not block on the
// conversation itself.
type EventSink interface {
	Accept(ctx context.Context, ev channel.InboundEvent) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev channel.InboundEvent) error

func (f SinkFunc) Accept(ctx context.Context, ev channel.InboundEvent) error { return f(ctx, ev) }

type WebhookHandler struct {
	verifyToken string
	appSecret   string
	sink        EventSink
}

func NewWebhookHandler(cfg config.WhatsAppConfig, sink EventSink) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		sink:        sink,
	}
}

// Verify answers the subscription challenge.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	if c.Query("hub.mode") != "subscribe" || h.verifyToken == "" || c.Query("hub.verify_token") != h.verifyToken {
		return response.Error(c, fiber.StatusForbidden, "verification failed")
	}
	return c.SendString(c.Query("hub.challenge"))
}

// Receive accepts a notification. Events are handed to the sink and the
// request is acknowledged before any conversation runs.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	body := c.Body()
	if h.appSecret != "" && !channel.VerifySignature(h.appSecret, body, c.Get("X-Hub-Signature-256")) {
		return response.Unauthorized(c)
	}

	events, err := channel.ParseWebhook(body)
	if err != nil {
		return response.BadRequest(c, "Invalid payload")
	}

	ctx := c.UserContext()
	for _, ev := range events {
		if err := h.sink.Accept(ctx, ev); err != nil {
			log.Printf("webhook: accept %s: %v", ev.MessageID, err)
			return response.Error(c, fiber.StatusServiceUnavailable, "try again later")
		}
	}
	return c.SendStatus(fiber.StatusOK)
}
