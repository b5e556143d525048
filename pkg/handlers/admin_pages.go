package handlers

import (
	"log"
	"sort"

	"navportal/pkg/api"

	"github.com/gofiber/fiber/v2"
)

// Admin pages render server data and call the /api/admin routes from the
// browser for every change.

func (h *Handler) AdminWebsitesPage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d := h.newPage(c, "admin", "Manage websites")
	websites, err := h.API.ListWebsites(ctx)
	if err != nil {
		d.Error = api.Message(err)
		return h.render(c, fiber.StatusOK, "admin", d)
	}
	sort.SliceStable(websites, func(i, j int) bool { return websites[i].Position < websites[j].Position })
	d.Websites = websites

	if d.Categories, err = h.API.ListCategories(ctx); err != nil {
		log.Printf("[ADMIN] categories: %v", err)
	}
	return h.render(c, fiber.StatusOK, "admin", d)
}

func (h *Handler) AdminCategoriesPage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d := h.newPage(c, "categories", "Manage categories")
	categories, err := h.API.ListCategories(ctx)
	if err != nil {
		d.Error = api.Message(err)
	}
	d.Categories = categories
	return h.render(c, fiber.StatusOK, "categories", d)
}

func (h *Handler) AdminUsersPage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d := h.newPage(c, "users", "Manage users")
	users, err := h.API.ListUsers(ctx)
	if err != nil {
		d.Error = api.Message(err)
	}
	d.Users = users
	return h.render(c, fiber.StatusOK, "users", d)
}

func (h *Handler) AdminSessionsPage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d := h.newPage(c, "sessions", "Sessions")
	online, err := h.API.OnlineUsers(ctx)
	if err != nil {
		d.Error = api.Message(err)
	}
	d.Online = online
	if d.Sessions, err = h.API.MySessions(ctx); err != nil {
		log.Printf("[ADMIN] sessions: %v", err)
	}
	return h.render(c, fiber.StatusOK, "sessions", d)
}
