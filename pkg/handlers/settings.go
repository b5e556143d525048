package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(h.Settings.Snapshot(c.UserContext()))
}

type settingsRequest struct {
	APIURL string `json:"api_url"`
}

func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if _, err := h.Settings.SetAPIURL(c.UserContext(), req.APIURL); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.Settings.Snapshot(c.UserContext()))
}

func (h *Handler) ResetSettings(c *fiber.Ctx) error {
	if _, err := h.Settings.Reset(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(h.Settings.Snapshot(c.UserContext()))
}
