package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"navportal/pkg/models"
)

// Login exchanges credentials for a token, persists it together with the
// current user and drops cached lists that depend on who is signed in.
// Bad credentials come back as a StatusError with the server's message.
func (c *Client) Login(ctx context.Context, username, password string) (models.User, error) {
	header := map[string]string{}
	if id, err := c.sessions.DeviceID(ctx); err == nil {
		header["X-Device-ID"] = id
	} else {
		log.Printf("[API] device id: %v", err)
	}

	var tok models.Token
	err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/token",
		form:      url.Values{"username": {username}, "password": {password}},
		header:    header,
		anonymous: true,
		exempt:    true,
	}, &tok)
	if err != nil {
		return models.User{}, err
	}
	if tok.AccessToken == "" {
		return models.User{}, &FormatError{Op: "POST /auth/token", ContentType: "application/json", Err: errors.New("missing access_token")}
	}

	if err := c.sessions.Save(ctx, tok, nil); err != nil {
		return models.User{}, fmt.Errorf("store session: %w", err)
	}

	var user models.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", exempt: true}, &user); err != nil {
		_, _ = c.sessions.Purge(ctx)
		return models.User{}, err
	}
	if err := c.sessions.SetUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("store user: %w", err)
	}
	c.clearCache(ctx)

	log.Printf("[API] Logged in as %s", user.Username)
	return user, nil
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &out)
	return out, err
}

// CheckToken asks the server whether the stored token is still accepted.
// It reports false on 401/403 and returns an error when the answer is
// inconclusive, for example the server could not be reached. It never
// triggers the unauthorized hook; callers decide what to do.
func (c *Client) CheckToken(ctx context.Context) (bool, error) {
	var user models.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", exempt: true}, &user)
	if err == nil {
		if err := c.sessions.SetUser(ctx, user); err != nil {
			log.Printf("[API] refresh stored user: %v", err)
		}
		return true, nil
	}
	var se *StatusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
		return false, nil
	}
	return false, err
}

// Logout revokes the current token on the server and always clears the
// local session, even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout", exempt: true}, nil)
	c.clearLocal(ctx)
	return err
}

func (c *Client) LogoutAll(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout-all", exempt: true}, nil)
	c.clearLocal(ctx)
	return err
}

func (c *Client) clearLocal(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if _, err := c.sessions.Purge(ctx); err != nil {
		log.Printf("[API] purge session: %v", err)
	}
	c.clearCache(ctx)
}

func (c *Client) MySessions(ctx context.Context) ([]models.SessionInfo, error) {
	var out []models.SessionInfo
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/my-sessions"}, &out)
	return out, err
}

func (c *Client) OnlineUsers(ctx context.Context) ([]models.OnlineUser, error) {
	var out []models.OnlineUser
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/online-users"}, &out)
	return out, err
}

func (c *Client) RevokeToken(ctx context.Context, id int) error {
	return c.do(ctx, request{method: http.MethodPost, path: idPath("/auth/revoke-token", id)}, nil)
}

func (c *Client) AdminRevokeToken(ctx context.Context, id int) error {
	return c.do(ctx, request{method: http.MethodPost, path: idPath("/auth/admin/revoke-token", id)}, nil)
}

func (c *Client) AdminRevokeUserTokens(ctx context.Context, userID int) error {
	return c.do(ctx, request{method: http.MethodPost, path: idPath("/auth/admin/revoke-user-tokens", userID)}, nil)
}
