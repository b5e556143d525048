// Package reorder implements drag-and-drop ordering of a user's websites:
// the new order is shown immediately, persisted in one batch and rolled back
// if the save fails.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"navportal/pkg/api"
	"navportal/pkg/cache"
	"navportal/pkg/models"
)

const SaveFailedMessage = "Failed to save the new order, restored the previous one"

var (
	ErrNoUser     = errors.New("reorder: no signed-in user")
	ErrOutOfRange = errors.New("reorder: index out of range")
	ErrMismatch   = errors.New("reorder: ids do not match the current list")
	ErrNoDrag     = errors.New("reorder: no drag in progress")
)

type Persister interface {
	SaveOrders(ctx context.Context, orders []models.UserWebsiteOrder) ([]models.UserWebsiteOrder, error)
}

// OrderStore records a saved order as the newest cached value.
type OrderStore interface {
	Store(ctx context.Context, key string, data any)
}

// Notifier reports rollbacks to open pages.
type Notifier interface {
	Toast(level, message string)
	Publish(action string, data any)
}

type Controller struct {
	persist Persister
	store   OrderStore
	notify  Notifier

	// save serializes drops so batches reach the server in order.
	save sync.Mutex

	mu       sync.Mutex
	userID   int
	items    []models.Website
	snapshot []models.Website
}

func NewController(p Persister, s OrderStore, n Notifier) *Controller {
	return &Controller{persist: p, store: s, notify: n}
}

// Load replaces the working list with the page's current order. It waits
// for a save in progress so that save's rollback cannot overwrite the list.
func (c *Controller) Load(userID int, items []models.Website) {
	c.save.Lock()
	defer c.save.Unlock()
	c.load(userID, items)
}

func (c *Controller) load(userID int, items []models.Website) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.items = clone(items)
	c.snapshot = nil
}

func (c *Controller) Items() []models.Website {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.items)
}

func (c *Controller) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ids(c.items)
}

// Begin captures the order to restore if the drop cannot be saved.
func (c *Controller) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = clone(c.items)
}

// Move drags the item at from so that it lands at index to.
func (c *Controller) Move(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d of %d", ErrOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}
	w := c.items[from]
	c.items = append(c.items[:from], c.items[from+1:]...)
	c.items = append(c.items[:to], append([]models.Website{w}, c.items[to:]...)...)
	return nil
}

// Drop persists the working order. On failure the snapshot taken by Begin is
// restored and the error is returned.
func (c *Controller) Drop(ctx context.Context) error {
	c.save.Lock()
	defer c.save.Unlock()
	return c.drop(ctx)
}

func (c *Controller) drop(ctx context.Context) error {
	c.mu.Lock()
	if c.snapshot == nil {
		c.mu.Unlock()
		return ErrNoDrag
	}
	userID := c.userID
	snapshot := c.snapshot
	orders := make([]models.UserWebsiteOrder, len(c.items))
	for i, w := range c.items {
		orders[i] = models.UserWebsiteOrder{UserID: userID, WebsiteID: w.ID, Position: i}
	}
	c.mu.Unlock()

	var err error
	if userID == 0 {
		err = ErrNoUser
	} else {
		_, err = c.persist.SaveOrders(ctx, orders)
	}
	if err != nil {
		c.rollback(snapshot, err)
		return err
	}

	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
	if c.store != nil {
		c.store.Store(ctx, cache.UserWebsiteOrdersKey, orders)
	}
	log.Printf("[REORDER] Saved order of %d websites for user %d", len(orders), userID)
	return nil
}

func (c *Controller) rollback(snapshot []models.Website, cause error) {
	c.mu.Lock()
	c.items = snapshot
	c.snapshot = nil
	restored := ids(c.items)
	c.mu.Unlock()

	log.Printf("[REORDER] Save failed, order restored: %v", cause)
	if c.notify == nil {
		return
	}
	msg := SaveFailedMessage
	var se *api.StatusError
	if errors.As(cause, &se) && se.Detail != "" {
		msg = se.Detail
	}
	c.notify.Toast("warning", msg)
	c.notify.Publish("orders.restored", map[string]any{"website_ids": restored})
}

// Reorder applies a complete new order given as website ids and saves it.
// The ids must be a permutation of the current list.
func (c *Controller) Reorder(ctx context.Context, order []int) error {
	c.save.Lock()
	defer c.save.Unlock()
	return c.reorder(ctx, order)
}

// LoadAndReorder replaces the working list and saves a new order for it
// without letting another save run in between. It returns the saved ids.
func (c *Controller) LoadAndReorder(ctx context.Context, userID int, items []models.Website, order []int) ([]int, error) {
	c.save.Lock()
	defer c.save.Unlock()
	c.load(userID, items)
	if err := c.reorder(ctx, order); err != nil {
		return nil, err
	}
	return c.IDs(), nil
}

func (c *Controller) reorder(ctx context.Context, order []int) error {
	c.mu.Lock()
	if len(order) != len(c.items) {
		c.mu.Unlock()
		return fmt.Errorf("%w: got %d ids for %d websites", ErrMismatch, len(order), len(c.items))
	}
	byID := make(map[int]models.Website, len(c.items))
	for _, w := range c.items {
		byID[w.ID] = w
	}
	next := make([]models.Website, 0, len(order))
	seen := make(map[int]bool, len(order))
	for _, id := range order {
		w, ok := byID[id]
		if !ok || seen[id] {
			c.mu.Unlock()
			return fmt.Errorf("%w: website %d", ErrMismatch, id)
		}
		seen[id] = true
		next = append(next, w)
	}
	c.snapshot = clone(c.items)
	c.items = next
	c.mu.Unlock()

	return c.drop(ctx)
}

func clone(in []models.Website) []models.Website {
	if in == nil {
		return nil
	}
	out := make([]models.Website, len(in))
	copy(out, in)
	return out
}

func ids(in []models.Website) []int {
	out := make([]int, len(in))
	for i, w := range in {
		out[i] = w.ID
	}
	return out
}
