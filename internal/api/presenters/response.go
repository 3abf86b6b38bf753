package presenters

import (
	"Fasting-Tracker/domain"
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

func SuccessResponse(c *fiber.Ctx, data any, statusCode int, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *fiber.Ctx, statusCode int, message string, err error) error {
	res := Response{
		Success:   false,
		Message:   message,
		ErrorCode: domain.ErrorCode(err),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return c.Status(statusCode).JSON(res)
}

// StatusFor maps a domain error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrMealNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrOwnerMissing),
		errors.Is(err, domain.ErrParseUUID), errors.Is(err, domain.ErrInvalidImageFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrValidationFailure):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProviderFailure):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid), errors.Is(err, domain.ErrTokenNotFound):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUserNotAllowed):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotImplemented):
		return fiber.StatusNotImplemented
	case errors.Is(err, domain.ErrImageStorageDisabled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// FailedResponse writes err with the status StatusFor picks.
func FailedResponse(c *fiber.Ctx, message string, err error) error {
	return ErrorResponse(c, StatusFor(err), message, err)
}
