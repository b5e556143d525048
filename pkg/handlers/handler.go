package handlers

import (
	"context"
	"embed"
	"html/template"
	"strings"
	"time"

	"navportal/pkg/api"
	"navportal/pkg/hub"
	"navportal/pkg/middleware"
	"navportal/pkg/portal"
	"navportal/pkg/reorder"
	"navportal/pkg/session"
	"navportal/pkg/settings"
	"navportal/pkg/validator"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

//go:embed templates/*.html
var templateFS embed.FS

type Deps struct {
	API       *api.Client
	Sessions  *session.Store
	Portal    *portal.Portal
	Reorder   *reorder.Controller
	Validator *validator.Validator
	Settings  *settings.Settings
	Hub       *hub.Hub
	Timeout   time.Duration
	LoginRate int
}

type Handler struct {
	Deps
	pages *template.Template
}

func New(d Deps) (*Handler, error) {
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}
	if d.LoginRate <= 0 {
		d.LoginRate = 10
	}
	pages, err := template.New("pages").Funcs(template.FuncMap{
		"isURL": func(s string) bool {
			return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:image/")
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{Deps: d, pages: pages}, nil
}

func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.Timeout)
}

func (h *Handler) Register(app *fiber.App) {
	loginLimit := limiter.New(limiter.Config{
		Max:        h.LoginRate,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many login attempts, try again in a minute"})
		},
	})
	requireSession := middleware.RequireSession(h.Sessions)

	// ── Pages ──
	app.Get("/", h.NewTabPage)
	app.Get("/popup", h.PopupPage)
	app.Get("/options", h.OptionsPage)
	app.Post("/options", h.SaveOptions)
	app.Get("/login", h.LoginPage)
	app.Post("/login", loginLimit, h.LoginSubmit)
	app.Post("/logout", h.LogoutSubmit)

	// ── Admin pages ──
	requireAdmin := middleware.RequireAdmin(h.Sessions)
	adminPages := app.Group("/admin", requireSession, requireAdmin)
	adminPages.Get("/", h.AdminWebsitesPage)
	adminPages.Get("/categories", h.AdminCategoriesPage)
	adminPages.Get("/users", h.AdminUsersPage)
	adminPages.Get("/sessions", h.AdminSessionsPage)

	apiGroup := app.Group("/api")

	// ── Websites ──
	apiGroup.Get("/websites", h.ListWebsites)
	apiGroup.Get("/websites/grouped", h.GroupedWebsites)
	apiGroup.Get("/my-websites", requireSession, h.MyWebsites)
	apiGroup.Put("/websites/order", requireSession, h.SaveOrder)

	// ── Auth ──
	auth := apiGroup.Group("/auth")
	auth.Post("/login", loginLimit, h.Login)
	auth.Post("/logout", h.Logout)
	auth.Post("/logout-all", h.LogoutAll)
	auth.Get("/me", requireSession, h.Me)
	auth.Get("/sessions", requireSession, h.MySessions)
	auth.Post("/sessions/:id/revoke", requireSession, h.RevokeSession)

	// ── Admin ──
	admin := apiGroup.Group("/admin", requireSession, requireAdmin)
	admin.Get("/online-users", h.OnlineUsers)
	admin.Post("/tokens/:id/revoke", h.AdminRevokeToken)
	admin.Post("/users/:id/revoke-tokens", h.AdminRevokeUserTokens)

	admin.Get("/websites", h.AdminListWebsites)
	admin.Get("/websites/:id", h.AdminGetWebsite)
	admin.Post("/websites", h.AdminCreateWebsite)
	admin.Put("/websites/:id", h.AdminUpdateWebsite)
	admin.Delete("/websites/:id", h.AdminDeleteWebsite)

	admin.Get("/categories", h.AdminListCategories)
	admin.Get("/categories/:id", h.AdminGetCategory)
	admin.Post("/categories", h.AdminCreateCategory)
	admin.Put("/categories/:id", h.AdminUpdateCategory)
	admin.Delete("/categories/:id", h.AdminDeleteCategory)

	admin.Get("/users", h.AdminListUsers)
	admin.Get("/users/roles", h.AdminRoles)
	admin.Get("/users/:id", h.AdminGetUser)
	admin.Post("/users", h.AdminCreateUser)
	admin.Put("/users/:id", h.AdminUpdateUser)
	admin.Delete("/users/:id", h.AdminDeleteUser)

	// ── Settings & session ──
	apiGroup.Get("/settings", h.GetSettings)
	apiGroup.Put("/settings", h.UpdateSettings)
	apiGroup.Delete("/settings", h.ResetSettings)
	apiGroup.Post("/session/check", h.CheckSession)

	// ── Live channel ──
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.Hub.Handler()))
}
