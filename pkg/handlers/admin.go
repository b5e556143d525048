package handlers

import (
	"navportal/pkg/cache"
	"navportal/pkg/models"

	"github.com/gofiber/fiber/v2"
)

func paramID(c *fiber.Ctx) (int, bool) {
	id, err := c.ParamsInt("id")
	return id, err == nil && id > 0
}

// ── Sessions ──

func (h *Handler) OnlineUsers(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	users, err := h.API.OnlineUsers(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

func (h *Handler) AdminRevokeToken(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid token id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	if err := h.API.AdminRevokeToken(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "token revoked"})
}

func (h *Handler) AdminRevokeUserTokens(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	if err := h.API.AdminRevokeUserTokens(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "user sessions revoked"})
}

// ── Websites ──

func (h *Handler) AdminListWebsites(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	list, err := h.API.ListWebsites(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *Handler) AdminGetWebsite(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid website id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	w, err := h.API.GetWebsite(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(w)
}

func (h *Handler) AdminCreateWebsite(c *fiber.Ctx) error {
	var in models.WebsiteInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	if in.Name == nil || in.URL == nil || *in.Name == "" || *in.URL == "" {
		return badRequest(c, "name and url are required")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	w, err := h.API.CreateWebsite(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	h.Hub.Refresh(cache.WebsitesKey)
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *Handler) AdminUpdateWebsite(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid website id")
	}
	var in models.WebsiteInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	w, err := h.API.UpdateWebsite(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	h.Hub.Refresh(cache.WebsitesKey)
	return c.JSON(w)
}

func (h *Handler) AdminDeleteWebsite(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid website id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	if err := h.API.DeleteWebsite(ctx, id); err != nil {
		return respondError(c, err)
	}
	h.Hub.Refresh(cache.WebsitesKey)
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Categories ──

func (h *Handler) AdminListCategories(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	list, err := h.API.ListCategories(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *Handler) AdminGetCategory(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid category id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	cat, err := h.API.GetCategory(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cat)
}

func (h *Handler) AdminCreateCategory(c *fiber.Ctx) error {
	var in models.CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	if in.Name == nil || *in.Name == "" {
		return badRequest(c, "name is required")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	cat, err := h.API.CreateCategory(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *Handler) AdminUpdateCategory(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid category id")
	}
	var in models.CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	cat, err := h.API.UpdateCategory(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	h.Hub.Refresh(cache.WebsitesKey)
	return c.JSON(cat)
}

func (h *Handler) AdminDeleteCategory(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid category id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	if err := h.API.DeleteCategory(ctx, id); err != nil {
		return respondError(c, err)
	}
	h.Hub.Refresh(cache.WebsitesKey)
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Users ──

func (h *Handler) AdminListUsers(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	users, err := h.API.ListUsers(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

func (h *Handler) AdminRoles(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	roles, err := h.API.Roles(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(roles)
}

func (h *Handler) AdminGetUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	u, err := h.API.GetUser(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(u)
}

func (h *Handler) AdminCreateUser(c *fiber.Ctx) error {
	var in models.UserCreate
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	if in.Username == "" || in.Password == "" {
		return badRequest(c, "username and password are required")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	u, err := h.API.CreateUser(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

// The target is resolved from the listed users, or fetched when it was never
// listed, so the built-in admin is recognised before any mutation is sent.
func (h *Handler) AdminUpdateUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var in models.UserUpdate
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	target, err := h.API.LookupUser(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	u, err := h.API.UpdateUser(ctx, target, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(u)
}

func (h *Handler) AdminDeleteUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	target, err := h.API.LookupUser(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.API.DeleteUser(ctx, target); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
