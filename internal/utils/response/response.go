package response

import (
	"log"

	apperrors "chatstore/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

// FromError maps a DomainError kind to a status. Dependency failures are
// logged and answered without their cause.
func FromError(c *fiber.Ctx, err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return Error(c, fiber.StatusConflict, apperrors.MessageOf(err))
	case apperrors.KindNotFound:
		return Error(c, fiber.StatusNotFound, apperrors.MessageOf(err))
	case apperrors.KindForbidden:
		return Error(c, fiber.StatusForbidden, "Forbidden")
	default:
		log.Printf("http: %s %s: %v", c.Method(), c.Path(), err)
		return Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
