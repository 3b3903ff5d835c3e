package handlers

import (
	"errors"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidationFailed):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, errs.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrProviderUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError logs err and writes the error envelope. Validation failures
// carry their field errors; server errors hide the cause.
func respondError(c *fiber.Ctx, log logger.Logger, message string, err error) error {
	status := statusFor(err)
	body := fiber.Map{"message": message}

	var validation errs.ValidationErrors
	switch {
	case errors.As(err, &validation):
		body["error"] = errs.ErrValidationFailed.Error()
		body["errors"] = validation
	case status == fiber.StatusInternalServerError:
		log.Er(message, err)
		body["error"] = "internal error"
	default:
		body["error"] = err.Error()
	}

	if status != fiber.StatusInternalServerError {
		log.Debug(message, "status", status, "error", err)
	}

	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, log logger.Logger, message string, err error) error {
	log.Debug(message, "error", err)
	return c.Status(fiber.StatusBadRequest).
		JSON(fiber.Map{"message": message, "error": err.Error()})
}

// queryInt reads a non-negative integer query value, def when absent.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.ValidationErrors{{Field: key, Message: "must be a non-negative integer"}}
	}
	return n, nil
}
