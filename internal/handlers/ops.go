package handlers

import (
	"context"
	"log"

	"chatstore/internal/jobs"
	"chatstore/internal/middleware"
	"chatstore/internal/models"
	"chatstore/internal/utils/response"
	"chatstore/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type PaymentRecorder interface {
	MarkPaid(ctx context.Context, orderID string) (*models.Order, bool, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (jobs.SweepReport, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, merchantID, message string) (jobs.BroadcastResult, error)
}

// OpsHandler serves the operator endpoints: payment confirmation,
// on-demand stale-order sweeps and broadcasts.
type OpsHandler struct {
	payments   PaymentRecorder
	sweeper    Sweeper
	broadcasts Broadcaster
	validate   *validator.Validate
}

func NewOpsHandler(payments PaymentRecorder, sweeper Sweeper, broadcasts Broadcaster) *OpsHandler {
	return &OpsHandler{
		payments:   payments,
		sweeper:    sweeper,
		broadcasts: broadcasts,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

type orderView struct {
	ID         string  `json:"id"`
	Ref        string  `json:"ref"`
	MerchantID string  `json:"merchant_id"`
	Status     string  `json:"status"`
	Total      float64 `json:"total"`
}

func viewOrder(o *models.Order) orderView {
	return orderView{ID: o.ID, Ref: o.Ref, MerchantID: o.MerchantID, Status: string(o.Status), Total: o.Total}
}

func (h *OpsHandler) MarkPaid(c *fiber.Ctx) error {
	order, changed, err := h.payments.MarkPaid(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	message := "Order marked paid"
	if !changed {
		message = "Order already paid"
	} else {
		log.Printf("ops: %s marked order %s paid", middleware.Operator(c), order.Ref)
	}
	return response.Success(c, message, viewOrder(order))
}

func (h *OpsHandler) SweepStaleOrders(c *fiber.Ctx) error {
	report, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Sweep complete", fiber.Map{
		"checked": report.Checked,
		"alerted": report.Alerted,
		"failed":  report.Failed,
	})
}

type broadcastRequest struct {
	Message string `json:"message" validate:"required,max=900"`
}

// Broadcast sends synchronously and answers with the counts.
func (h *OpsHandler) Broadcast(c *fiber.Ctx) error {
	var input broadcastRequest
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if err := h.validate.Struct(input); err != nil {
		return response.BadRequest(c, "message is required and must be at most 900 characters")
	}
	message, err := validation.ParseMessage(input.Message)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	result, err := h.broadcasts.Broadcast(c.UserContext(), c.Params("id"), message)
	if err != nil {
		return response.FromError(c, err)
	}
	log.Printf("ops: %s broadcast for %s: %d sent", middleware.Operator(c), c.Params("id"), result.Sent)
	return response.Success(c, "Broadcast finished", fiber.Map{
		"sent":    result.Sent,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	})
}
