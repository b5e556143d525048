package middleware

import (
	"strings"

	"navportal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

const LoginPath = "/login"

// RequireSession lets the request through only when a non-expired session is
// stored locally. API callers get a JSON 401; pages are sent to the login
// form.
func RequireSession(sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sessions.IsAuthenticated(c.UserContext()) {
			return c.Next()
		}
		if wantsJSON(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":    "not authenticated",
				"redirect": LoginPath,
			})
		}
		return c.Redirect(LoginPath, fiber.StatusSeeOther)
	}
}

// RequireAdmin must run after RequireSession. Pages opened by other users
// are sent back to the home page.
func RequireAdmin(sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := sessions.User(c.UserContext())
		if !ok || !user.IsAdmin {
			if !wantsJSON(c) {
				return c.Redirect("/", fiber.StatusSeeOther)
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "administrator access required"})
		}
		c.Locals("user", user)
		return c.Next()
	}
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.HasPrefix(c.Path(), "/api/") {
		return true
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
