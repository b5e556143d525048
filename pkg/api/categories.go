package api

import (
	"context"
	"net/http"

	"navportal/pkg/models"
)

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := c.do(ctx, request{method: http.MethodGet, path: "/categories/"}, &out)
	return out, err
}

func (c *Client) GetCategory(ctx context.Context, id int) (models.Category, error) {
	var out models.Category
	err := c.do(ctx, request{method: http.MethodGet, path: idPath("/categories", id)}, &out)
	return out, err
}

func (c *Client) CreateCategory(ctx context.Context, in models.CategoryInput) (models.Category, error) {
	var out models.Category
	if err := c.do(ctx, request{method: http.MethodPost, path: "/categories/", body: in}, &out); err != nil {
		return out, err
	}
	c.invalidateWebsites(ctx)
	return out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int, in models.CategoryInput) (models.Category, error) {
	var out models.Category
	if err := c.do(ctx, request{method: http.MethodPut, path: idPath("/categories", id), body: in}, &out); err != nil {
		return out, err
	}
	// Websites carry their category name, so cached lists are stale too.
	c.invalidateWebsites(ctx)
	return out, nil
}

// DeleteCategory fails with the server's message when the category is
// still in use.
func (c *Client) DeleteCategory(ctx context.Context, id int) error {
	if err := c.do(ctx, request{method: http.MethodDelete, path: idPath("/categories", id)}, nil); err != nil {
		return err
	}
	c.invalidateWebsites(ctx)
	return nil
}
