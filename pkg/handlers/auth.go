package handlers

import (
	"log"
	"strings"

	"navportal/pkg/models"
	"navportal/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.API.Login(ctx, req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	h.Validator.MarkAuthenticated()
	return c.JSON(fiber.Map{"user": user})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.API.Logout(ctx); err != nil {
		log.Printf("[PORTAL] logout: %v", err)
	}
	h.Validator.MarkUnauthenticated()
	return c.JSON(models.MessageResponse{Message: "logged out"})
}

func (h *Handler) LogoutAll(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.API.LogoutAll(ctx); err != nil {
		log.Printf("[PORTAL] logout all: %v", err)
	}
	h.Validator.MarkUnauthenticated()
	return c.JSON(models.MessageResponse{Message: "logged out on all devices"})
}

func (h *Handler) Me(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, err := h.API.Me(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

func (h *Handler) MySessions(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	sessions, err := h.API.MySessions(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sessions)
}

func (h *Handler) RevokeSession(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid session id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.API.RevokeToken(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "session revoked"})
}

type checkRequest struct {
	Trigger string `json:"trigger"`
}

// CheckSession runs a validator pass on behalf of a page, for clients that
// cannot keep the websocket open.
func (h *Handler) CheckSession(c *fiber.Ctx) error {
	var req checkRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	trigger := validatorTrigger(req.Trigger)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	state := h.Validator.Check(ctx, trigger)
	return c.JSON(fiber.Map{"state": state.String(), "authenticated": state == validator.Authenticated})
}
