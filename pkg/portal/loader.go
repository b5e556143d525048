package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"navportal/pkg/api"
	"navportal/pkg/cache"
)

const RefreshFailedMessage = "Could not refresh, showing saved data"

type Toaster interface {
	Toast(level, message string)
}

// Loader serves cached data first and refreshes it in the background. Every
// fetch for a key is numbered; a completion only lands in the cache when no
// newer fetch, write or invalidation for that key has landed already.
type Loader struct {
	cache   *cache.Manager
	toast   Toaster
	timeout time.Duration

	mu       sync.Mutex
	issued   map[string]uint64
	applied  map[string]uint64
	onUpdate []func(key string)

	wg sync.WaitGroup
}

type LoaderOption func(*Loader)

func WithToaster(t Toaster) LoaderOption {
	return func(l *Loader) { l.toast = t }
}

// WithRefreshTimeout bounds background refreshes, which outlive the request
// that started them.
func WithRefreshTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func NewLoader(c *cache.Manager, opts ...LoaderOption) *Loader {
	l := &Loader{
		cache:   c,
		timeout: 15 * time.Second,
		issued:  make(map[string]uint64),
		applied: make(map[string]uint64),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// OnUpdate registers fn to run after a background refresh stored data that
// differs from what was cached.
func (l *Loader) OnUpdate(fn func(key string)) {
	l.mu.Lock()
	l.onUpdate = append(l.onUpdate, fn)
	l.mu.Unlock()
}

// Wait blocks until all background refreshes have finished.
func (l *Loader) Wait() {
	l.wg.Wait()
}

type Result[T any] struct {
	Data      T
	FromCache bool
	CachedAt  time.Time
}

// Load returns the cached value for key when it is fresh and refreshes it in
// the background. On a miss it fetches synchronously and returns any error.
func Load[T any](ctx context.Context, l *Loader, key string, fetch func(context.Context) (T, error)) (Result[T], error) {
	var cached T
	if l.cache.Get(ctx, key, &cached) {
		at, _ := l.cache.Timestamp(ctx, key)
		prev, _ := json.Marshal(cached)
		seq := l.next(key)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.refresh(ctx, key, seq, prev, func(ctx context.Context) (any, error) { return fetch(ctx) })
		}()
		return Result[T]{Data: cached, FromCache: true, CachedAt: at}, nil
	}

	seq := l.next(key)
	data, err := fetch(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	l.apply(ctx, key, seq, data)
	return Result[T]{Data: data}, nil
}

func (l *Loader) next(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued[key]++
	return l.issued[key]
}

// apply stores data unless a newer fetch for key already landed.
func (l *Loader) apply(ctx context.Context, key string, seq uint64, data any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq <= l.applied[key] {
		log.Printf("[PORTAL] Dropping stale result for %s (seq %d <= %d)", key, seq, l.applied[key])
		return false
	}
	l.applied[key] = seq
	l.cache.Set(ctx, key, data, 0)
	return true
}

func (l *Loader) refresh(parent context.Context, key string, seq uint64, prev []byte, fetch func(context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), l.timeout)
	defer cancel()

	data, err := fetch(ctx)
	if err != nil {
		log.Printf("[PORTAL] Background refresh of %s failed: %v", key, err)
		// A 401 is handled by the client's redirect.
		if l.toast != nil && !errors.Is(err, api.ErrUnauthorized) {
			l.toast.Toast("warning", RefreshFailedMessage)
		}
		return
	}
	if !l.apply(ctx, key, seq, data) {
		return
	}
	if next, err := json.Marshal(data); err == nil && bytes.Equal(prev, next) {
		return
	}

	l.mu.Lock()
	hooks := append([]func(string){}, l.onUpdate...)
	l.mu.Unlock()
	for _, fn := range hooks {
		fn(key)
	}
}

// settle marks every fetch issued so far for key as superseded. Callers hold mu.
func (l *Loader) settle(key string) {
	if l.issued[key] > l.applied[key] {
		l.applied[key] = l.issued[key]
	}
}

// Invalidate forgets the cached values for keys so the next Load fetches.
// Refreshes already in flight for those keys are discarded.
func (l *Loader) Invalidate(ctx context.Context, keys ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		l.settle(k)
	}
	l.cache.Clear(ctx, keys...)
}

// ClearAll clears the whole cache and discards every refresh in flight.
func (l *Loader) ClearAll(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.issued {
		l.settle(k)
	}
	l.cache.ClearAll(ctx)
}

// Store writes data for key as the newest value. Refreshes already in flight
// for key are discarded.
func (l *Loader) Store(ctx context.Context, key string, data any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settle(key)
	l.cache.Set(ctx, key, data, 0)
}
