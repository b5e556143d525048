package api

import (
	"context"
	"net/http"

	"navportal/pkg/models"
)

func (c *Client) ListOrders(ctx context.Context) ([]models.UserWebsiteOrder, error) {
	var out []models.UserWebsiteOrder
	err := c.do(ctx, request{method: http.MethodGet, path: "/user-website-orders/"}, &out)
	return out, err
}

// SaveOrders replaces the caller's positions for every website in orders in
// one request.
func (c *Client) SaveOrders(ctx context.Context, orders []models.UserWebsiteOrder) ([]models.UserWebsiteOrder, error) {
	var out []models.UserWebsiteOrder
	err := c.do(ctx, request{method: http.MethodPut, path: "/user-website-orders/batch", body: orders}, &out)
	if err != nil {
		return nil, err
	}
	c.invalidateWebsites(ctx)
	if out == nil {
		out = orders
	}
	return out, nil
}
