package reorder

import (
	"sort"

	"navportal/pkg/models"
)

// ApplyUserOrder returns websites sorted by the user's saved positions.
// Websites the user never placed keep their default position, and equal
// positions keep the default ordering.
func ApplyUserOrder(websites []models.Website, orders []models.UserWebsiteOrder) []models.Website {
	out := make([]models.Website, len(websites))
	copy(out, websites)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })

	if len(orders) == 0 {
		return out
	}

	pos := make(map[int]int, len(orders))
	for _, o := range orders {
		pos[o.WebsiteID] = o.Position
	}

	type ranked struct {
		w     models.Website
		rank  int
		index int
	}
	items := make([]ranked, len(out))
	for i, w := range out {
		r := w.Position
		if p, ok := pos[w.ID]; ok {
			r = p
		}
		items[i] = ranked{w: w, rank: r, index: i}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].rank != items[j].rank {
			return items[i].rank < items[j].rank
		}
		return items[i].index < items[j].index
	})
	for i := range items {
		out[i] = items[i].w
	}
	return out
}
