package api

import (
	"context"
	"net/http"

	"navportal/pkg/cache"
	"navportal/pkg/models"
)

// ListUsers also remembers the list so LookupUser can resolve ids without a
// round trip.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/users/"}, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetUsers(ctx, out)
	}
	return out, nil
}

// LookupUser returns the user with id from the last listed users, falling
// back to GET /users/{id}.
func (c *Client) LookupUser(ctx context.Context, id int) (models.User, error) {
	if c.cache != nil {
		if u, ok := c.cache.User(ctx, id); ok {
			return u, nil
		}
	}
	return c.GetUser(ctx, id)
}

func (c *Client) GetUser(ctx context.Context, id int) (models.User, error) {
	var out models.User
	err := c.do(ctx, request{method: http.MethodGet, path: idPath("/users", id)}, &out)
	return out, err
}

func (c *Client) CreateUser(ctx context.Context, in models.UserCreate) (models.User, error) {
	var out models.User
	if err := c.do(ctx, request{method: http.MethodPost, path: "/users/", body: in}, &out); err != nil {
		return models.User{}, err
	}
	c.invalidate(ctx, cache.UsersKey)
	return out, nil
}

// UpdateUser refuses to deactivate the built-in admin account without
// contacting the server.
func (c *Client) UpdateUser(ctx context.Context, target models.User, in models.UserUpdate) (models.User, error) {
	if target.IsBuiltinAdmin() && in.IsActive != nil && !*in.IsActive {
		return models.User{}, ErrProtectedAdmin
	}
	var out models.User
	if err := c.do(ctx, request{method: http.MethodPut, path: idPath("/users", target.ID), body: in}, &out); err != nil {
		return models.User{}, err
	}
	c.invalidate(ctx, cache.UsersKey)
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, target models.User) error {
	if target.IsBuiltinAdmin() {
		return ErrProtectedAdmin
	}
	if err := c.do(ctx, request{method: http.MethodDelete, path: idPath("/users", target.ID)}, nil); err != nil {
		return err
	}
	c.invalidate(ctx, cache.UsersKey)
	return nil
}

func (c *Client) Roles(ctx context.Context) ([]models.Role, error) {
	var out []models.Role
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/roles"}, &out)
	return out, err
}
