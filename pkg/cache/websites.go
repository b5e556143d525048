package cache

import (
	"context"

	"navportal/pkg/models"
)

const (
	WebsitesKey          = "websites_list"
	MyWebsitesKey        = "my_websites_list"
	UserWebsiteOrdersKey = "user_website_orders"
)

func (m *Manager) SetWebsites(ctx context.Context, websites []models.Website) {
	m.Set(ctx, WebsitesKey, websites, 0)
}

func (m *Manager) Websites(ctx context.Context) ([]models.Website, bool) {
	var out []models.Website
	return out, m.Get(ctx, WebsitesKey, &out)
}

func (m *Manager) SetMyWebsites(ctx context.Context, websites []models.Website) {
	m.Set(ctx, MyWebsitesKey, websites, 0)
}

func (m *Manager) MyWebsites(ctx context.Context) ([]models.Website, bool) {
	var out []models.Website
	return out, m.Get(ctx, MyWebsitesKey, &out)
}

func (m *Manager) SetUserWebsiteOrders(ctx context.Context, orders []models.UserWebsiteOrder) {
	m.Set(ctx, UserWebsiteOrdersKey, orders, 0)
}

func (m *Manager) UserWebsiteOrders(ctx context.Context) ([]models.UserWebsiteOrder, bool) {
	var out []models.UserWebsiteOrder
	return out, m.Get(ctx, UserWebsiteOrdersKey, &out)
}

// WebsiteKeys are the entries any website, category or order mutation makes
// stale.
var WebsiteKeys = []string{WebsitesKey, MyWebsitesKey, UserWebsiteOrdersKey}

// ClearWebsites drops every website-related entry.
func (m *Manager) ClearWebsites(ctx context.Context) {
	m.Clear(ctx, WebsiteKeys...)
}
