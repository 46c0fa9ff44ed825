package handler

import (
	"net/http"

	"storefront/internal/core/logger"
	"storefront/internal/features/orders/domain"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const msgServerError = "Server error"

// Response is the envelope of every order endpoint.
type Response struct {
	// Success is false for every error response.
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// OrderData wraps a single order in the response data.
type OrderData struct {
	Order *domain.Order `json:"order"`
}

// OrdersData wraps an unpaginated order list in the response data.
type OrdersData struct {
	Orders []*domain.Order `json:"orders"`
}

// StatsData wraps order statistics in the response data.
type StatsData struct {
	Stats *domain.Stats `json:"stats"`
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
		RayID:   rayID(c),
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{
		Message: message,
		RayID:   rayID(c),
	})
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidState:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// failWith writes err as an envelope. Persistence failures are logged and
// answered with a generic message.
func failWith(c *fiber.Ctx, op string, err error) error {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logger.FromContext(c.UserContext()).Error("Order request failed",
			zap.String("operation", op),
			zap.String("ray_id", rayID(c)),
			zap.Error(err),
		)
		return fail(c, status, msgServerError)
	}

	msg := domain.MessageOf(err)
	if msg == "" {
		msg = err.Error()
	}
	return fail(c, status, msg)
}
