// Package portal assembles what the new-tab and popup pages show: the
// website list for the current visitor, search and category grouping.
package portal

import (
	"context"
	"log"
	"sort"
	"strings"

	"navportal/pkg/cache"
	"navportal/pkg/models"
	"navportal/pkg/reorder"
	"navportal/pkg/session"
)

const Uncategorized = "Uncategorized"

type Source interface {
	ListActiveWebsites(ctx context.Context) ([]models.Website, error)
	ListMyWebsites(ctx context.Context) ([]models.Website, error)
	ListOrders(ctx context.Context) ([]models.UserWebsiteOrder, error)
}

type Portal struct {
	src      Source
	sessions *session.Store
	loader   *Loader
}

func New(src Source, sessions *session.Store, loader *Loader) *Portal {
	return &Portal{src: src, sessions: sessions, loader: loader}
}

func (p *Portal) Loader() *Loader {
	return p.loader
}

// Websites returns the active websites the current visitor can see. The
// token is sent when there is one, so signed-in users get their own websites
// together with the public ones, in their saved order.
func (p *Portal) Websites(ctx context.Context) (Result[[]models.Website], error) {
	res, err := Load(ctx, p.loader, cache.WebsitesKey, p.src.ListActiveWebsites)
	if err != nil {
		return res, err
	}
	list := activeOnly(res.Data)
	if !p.sessions.IsAuthenticated(ctx) {
		res.Data = sortByPosition(list)
		return res, nil
	}
	res.Data = p.withUserOrder(ctx, list)
	return res, nil
}

// MyWebsites returns only the websites the signed-in user owns, in their
// saved order.
func (p *Portal) MyWebsites(ctx context.Context) (Result[[]models.Website], error) {
	res, err := Load(ctx, p.loader, cache.MyWebsitesKey, p.src.ListMyWebsites)
	if err != nil {
		return res, err
	}
	res.Data = p.withUserOrder(ctx, activeOnly(res.Data))
	return res, nil
}

func (p *Portal) withUserOrder(ctx context.Context, list []models.Website) []models.Website {
	orders, err := Load(ctx, p.loader, cache.UserWebsiteOrdersKey, p.src.ListOrders)
	if err != nil {
		log.Printf("[PORTAL] Saved order unavailable, using default order: %v", err)
		return sortByPosition(list)
	}
	return reorder.ApplyUserOrder(list, orders.Data)
}

// Search keeps websites whose name, description or category contains term,
// ignoring case. An empty term keeps everything.
func Search(list []models.Website, term string) []models.Website {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return list
	}
	out := make([]models.Website, 0, len(list))
	for _, w := range list {
		if strings.Contains(strings.ToLower(w.Name), term) ||
			strings.Contains(strings.ToLower(w.Description), term) ||
			strings.Contains(strings.ToLower(w.Category), term) {
			out = append(out, w)
		}
	}
	return out
}

type Group struct {
	Category string           `json:"category"`
	Websites []models.Website `json:"websites"`
}

// GroupByCategory buckets websites by category in order of first
// appearance. Each bucket is sorted by position.
func GroupByCategory(list []models.Website) []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, w := range list {
		name := strings.TrimSpace(w.Category)
		if name == "" {
			name = Uncategorized
		}
		i, ok := idx[name]
		if !ok {
			i = len(groups)
			idx[name] = i
			groups = append(groups, Group{Category: name})
		}
		groups[i].Websites = append(groups[i].Websites, w)
	}
	for i := range groups {
		groups[i].Websites = sortByPosition(groups[i].Websites)
	}
	return groups
}

func activeOnly(list []models.Website) []models.Website {
	out := make([]models.Website, 0, len(list))
	for _, w := range list {
		if w.IsActive {
			out = append(out, w)
		}
	}
	return out
}

func sortByPosition(list []models.Website) []models.Website {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	return list
}
