package handlers

import (
	"log"
	"strings"

	"navportal/pkg/cache"
	"navportal/pkg/portal"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListWebsites(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Portal.Websites(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"websites":   portal.Search(res.Data, queryTerm(c)),
		"from_cache": res.FromCache,
	})
}

func (h *Handler) GroupedWebsites(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Portal.Websites(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"groups":     portal.GroupByCategory(portal.Search(res.Data, queryTerm(c))),
		"from_cache": res.FromCache,
	})
}

func (h *Handler) MyWebsites(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.Portal.MyWebsites(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"websites": res.Data, "from_cache": res.FromCache})
}

type orderRequest struct {
	WebsiteIDs []int `json:"website_ids"`
}

// SaveOrder persists a dragged order. The list is rebuilt from the websites
// the new-tab page shows so ids the page does not know about are rejected.
func (h *Handler) SaveOrder(c *fiber.Ctx) error {
	var req orderRequest
	if err := c.BodyParser(&req); err != nil || len(req.WebsiteIDs) == 0 {
		return badRequest(c, "website_ids is required")
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	user, ok := h.Sessions.User(ctx)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated", "redirect": "/login"})
	}
	current, err := h.Portal.Websites(ctx)
	if err != nil {
		return respondError(c, err)
	}

	saved, err := h.Reorder.LoadAndReorder(ctx, user.ID, current.Data, req.WebsiteIDs)
	if err != nil {
		log.Printf("[REORDER] user %d: %v", user.ID, err)
		return respondError(c, err)
	}
	h.Hub.Refresh(cache.WebsitesKey)
	return c.JSON(fiber.Map{"website_ids": saved})
}

func queryTerm(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Query("q"))
}
