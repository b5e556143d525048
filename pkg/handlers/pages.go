package handlers

import (
	"bytes"
	"log"
	"strings"
	"time"

	"navportal/pkg/api"
	"navportal/pkg/models"
	"navportal/pkg/portal"

	"github.com/gofiber/fiber/v2"
)

type pageData struct {
	Title string
	Page  string
	User  *models.User
	Error string

	Websites  []models.Website
	Groups    []portal.Group
	FromCache bool
	CachedAt  time.Time
	Draggable bool
	Query     string

	APIURL        string
	DefaultAPIURL string
	Saved         bool

	Username string

	Categories []models.Category
	Users      []models.User
	Online     []models.OnlineUser
	Sessions   []models.SessionInfo
}

func (h *Handler) newPage(c *fiber.Ctx, page, title string) pageData {
	d := pageData{Title: title, Page: page}
	if h.Sessions.IsAuthenticated(c.UserContext()) {
		if u, ok := h.Sessions.User(c.UserContext()); ok {
			d.User = &u
		}
	}
	return d
}

func (h *Handler) render(c *fiber.Ctx, status int, name string, data pageData) error {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[PORTAL] render %s: %v", name, err)
		return fiber.ErrInternalServerError
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

func (h *Handler) NewTabPage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d := h.newPage(c, "newtab", "Navigation")
	res, err := h.Portal.Websites(ctx)
	if err != nil {
		log.Printf("[PORTAL] new tab: %v", err)
		d.Error = api.Message(err)
		return h.render(c, fiber.StatusOK, "newtab", d)
	}
	d.Websites = res.Data
	d.FromCache = res.FromCache
	d.CachedAt = res.CachedAt
	d.Draggable = d.User != nil
	return h.render(c, fiber.StatusOK, "newtab", d)
}

func (h *Handler) PopupPage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	d := h.newPage(c, "popup", "Browse")
	d.Query = strings.TrimSpace(c.Query("q"))
	res, err := h.Portal.Websites(ctx)
	if err != nil {
		log.Printf("[PORTAL] popup: %v", err)
		d.Error = api.Message(err)
		return h.render(c, fiber.StatusOK, "popup", d)
	}
	d.Groups = portal.GroupByCategory(portal.Search(res.Data, d.Query))
	d.FromCache = res.FromCache
	return h.render(c, fiber.StatusOK, "popup", d)
}

func (h *Handler) OptionsPage(c *fiber.Ctx) error {
	d := h.newPage(c, "options", "Options")
	d.APIURL = h.Settings.APIURL(c.UserContext())
	d.DefaultAPIURL = h.Settings.Default()
	return h.render(c, fiber.StatusOK, "options", d)
}

func (h *Handler) SaveOptions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	d := h.newPage(c, "options", "Options")
	d.DefaultAPIURL = h.Settings.Default()

	var err error
	if c.FormValue("action") == "reset" {
		d.APIURL, err = h.Settings.Reset(ctx)
	} else {
		d.APIURL, err = h.Settings.SetAPIURL(ctx, c.FormValue("api_url"))
	}
	if err != nil {
		status, msg := statusFor(err)
		d.Error = msg
		d.APIURL = c.FormValue("api_url")
		return h.render(c, status, "options", d)
	}
	d.Saved = true
	return h.render(c, fiber.StatusOK, "options", d)
}

func (h *Handler) LoginPage(c *fiber.Ctx) error {
	if h.Sessions.IsAuthenticated(c.UserContext()) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return h.render(c, fiber.StatusOK, "login", h.newPage(c, "login", "Log in"))
}

func (h *Handler) LoginSubmit(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")
	d := h.newPage(c, "login", "Log in")
	d.Username = username
	if username == "" || password == "" {
		d.Error = "Username and password are required"
		return h.render(c, fiber.StatusBadRequest, "login", d)
	}

	if _, err := h.API.Login(ctx, username, password); err != nil {
		status, msg := statusFor(err)
		d.Error = msg
		return h.render(c, status, "login", d)
	}
	h.Validator.MarkAuthenticated()
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *Handler) LogoutSubmit(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.API.Logout(ctx); err != nil {
		log.Printf("[PORTAL] logout: %v", err)
	}
	h.Validator.MarkUnauthenticated()
	return c.Redirect("/login", fiber.StatusSeeOther)
}
