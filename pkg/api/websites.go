package api

import (
	"context"
	"net/http"
	"net/url"

	"navportal/pkg/models"
)

// ListActiveWebsites is the public listing used by the new-tab page. A 401
// here never clears the local session.
func (c *Client) ListActiveWebsites(ctx context.Context) ([]models.Website, error) {
	var out []models.Website
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/websites/",
		query:  url.Values{"is_active": {"true"}},
		exempt: true,
	}, &out)
	return out, err
}

func (c *Client) ListWebsites(ctx context.Context) ([]models.Website, error) {
	var out []models.Website
	err := c.do(ctx, request{method: http.MethodGet, path: "/websites/"}, &out)
	return out, err
}

func (c *Client) ListMyWebsites(ctx context.Context) ([]models.Website, error) {
	var out []models.Website
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/websites/",
		query:  url.Values{"my_websites_only": {"true"}},
	}, &out)
	return out, err
}

func (c *Client) GetWebsite(ctx context.Context, id int) (models.Website, error) {
	var out models.Website
	err := c.do(ctx, request{method: http.MethodGet, path: idPath("/websites", id)}, &out)
	return out, err
}

func (c *Client) CreateWebsite(ctx context.Context, in models.WebsiteInput) (models.Website, error) {
	var out models.Website
	if err := c.do(ctx, request{method: http.MethodPost, path: "/websites/", body: in}, &out); err != nil {
		return out, err
	}
	c.invalidateWebsites(ctx)
	return out, nil
}

func (c *Client) UpdateWebsite(ctx context.Context, id int, in models.WebsiteInput) (models.Website, error) {
	var out models.Website
	if err := c.do(ctx, request{method: http.MethodPut, path: idPath("/websites", id), body: in}, &out); err != nil {
		return out, err
	}
	c.invalidateWebsites(ctx)
	return out, nil
}

func (c *Client) DeleteWebsite(ctx context.Context, id int) error {
	if err := c.do(ctx, request{method: http.MethodDelete, path: idPath("/websites", id)}, nil); err != nil {
		return err
	}
	c.invalidateWebsites(ctx)
	return nil
}
