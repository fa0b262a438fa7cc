package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/validate"
)

// GenericError is the only message a 500 ever carries.
const GenericError = "Something went wrong. Please try again."

// classify maps an error to its status and client-safe message.
func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			return fe.Code, GenericError
		}
		return fe.Code, fe.Message
	}
	msg, public := domain.PublicMessage(err)
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusBadRequest, msgOr(msg, public, "invalid request")
	case errors.Is(err, domain.ErrUnauthenticated):
		return fiber.StatusUnauthorized, msgOr(msg, public, "authentication required")
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, msgOr(msg, public, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, msgOr(msg, public, "not found")
	}
	return fiber.StatusInternalServerError, GenericError
}

func msgOr(msg string, ok bool, fallback string) string {
	if ok && msg != "" {
		return msg
	}
	return fallback
}

// fail writes the JSON error for err and logs it under action.
func fail(c *fiber.Ctx, action string, err error) error {
	code, msg := classify(err)
	c.Status(code)
	switch {
	case code >= fiber.StatusInternalServerError:
		applog.Error(c, action+".fail", err, nil)
	case code == fiber.StatusUnauthorized || code == fiber.StatusForbidden:
		applog.Security(c, "access.denied", map[string]any{"action": action, "reason": msg})
	case errors.Is(err, domain.ErrValidation):
		applog.Security(c, "validation.fail", map[string]any{"action": action, "reason": msg})
	default:
		applog.Info(c, action+".rejected", map[string]any{"reason": msg})
	}
	return c.JSON(fiber.Map{"error": msg})
}

// badRequest rejects malformed input before it reaches a service.
func badRequest(c *fiber.Ctx, field, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// parseBody decodes the request body into out. A non-nil result is a 400
// for the ErrorHandler to render; callers return it as is.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": "body"})
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	return nil
}

func pageRequest(c *fiber.Ctx) domain.PageRequest {
	return domain.PageRequest{
		Page:  validate.Page(c.Query("page")),
		Limit: validate.Limit(c.Query("limit")),
	}
}

// ErrorHandler is the app-wide catch-all: routing errors keep their status,
// anything unexpected becomes a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, msg := classify(err)
	if code >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
