package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Check reports on one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	services := fiber.Map{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		services[name] = "connected"
	}

	overall := "ok"
	if status != fiber.StatusOK {
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"services": services,
	})
}
