package handlers

import (
	"errors"
	"log"
	"net/http"

	"navportal/pkg/api"
	"navportal/pkg/reorder"
	"navportal/pkg/settings"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps an error to the status code and message a caller sees.
func statusFor(err error) (int, string) {
	var se *api.StatusError
	switch {
	case errors.Is(err, api.ErrProtectedAdmin):
		return fiber.StatusForbidden, err.Error()
	case errors.As(err, &se):
		return se.Status, se.Detail
	case api.IsTransient(err):
		return fiber.StatusBadGateway, api.Message(err)
	case errors.Is(err, reorder.ErrNoUser):
		return fiber.StatusUnauthorized, "not authenticated"
	case errors.Is(err, reorder.ErrMismatch),
		errors.Is(err, reorder.ErrOutOfRange),
		errors.Is(err, settings.ErrInvalidURL):
		return fiber.StatusBadRequest, err.Error()
	default:
		return fiber.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)
	if status >= 500 && status != fiber.StatusBadGateway {
		log.Printf("[PORTAL] %s %s: %v", c.Method(), c.Path(), err)
	}
	body := fiber.Map{"error": msg}
	if status == fiber.StatusUnauthorized {
		body["redirect"] = "/login"
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
