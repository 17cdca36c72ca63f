// Package routes mounts the webhook, health and ops endpoints.
package routes

import (
	"chatstore/internal/handlers"
	"chatstore/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Webhook      *handlers.WebhookHandler
	Health       *handlers.HealthHandler
	Ops          *handlers.OpsHandler
	OpsJWTSecret string
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/healthz", h.Health.HealthCheck)

	app.Get("/webhook", h.Webhook.Verify)
	app.Post("/webhook", h.Webhook.Receive)

	ops := app.Group("/api/ops", middleware.OpsAuth(h.OpsJWTSecret))
	ops.Post("/orders/:id/paid", h.Ops.MarkPaid)
	ops.Post("/sweeps/stale-orders", h.Ops.SweepStaleOrders)
	ops.Post("/merchants/:id/broadcasts", h.Ops.Broadcast)
}
