package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"navportal/pkg/storage"
)

const (
	DefaultPrefix = "putx_cache_"
	DefaultTTL    = 5 * time.Minute
)

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"expireTime"`
}

// Manager is a time-boxed cache layered over a storage.Store. Timestamps and
// TTLs are kept in milliseconds.
type Manager struct {
	store  storage.Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(m *Manager) { m.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) key(k string) string {
	return m.prefix + k
}

// Set stores data under key. A non-positive ttl uses the manager default.
func (m *Manager) Set(ctx context.Context, key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[CACHE] encode %s: %v", key, err)
		return
	}
	e := entry{
		Data:      raw,
		Timestamp: m.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}
	if err := storage.SetJSON(ctx, m.store, m.key(key), e); err != nil {
		log.Printf("[CACHE] set %s: %v", key, err)
	}
}

// Get decodes a fresh entry into dest. Expired or unreadable entries are
// evicted and reported as a miss.
func (m *Manager) Get(ctx context.Context, key string, dest any) bool {
	e, ok := m.load(ctx, key)
	if !ok {
		return false
	}
	if m.now().UnixMilli()-e.Timestamp > e.TTL {
		m.Clear(ctx, key)
		return false
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		log.Printf("[CACHE] decode %s: %v", key, err)
		m.Clear(ctx, key)
		return false
	}
	return true
}

func (m *Manager) load(ctx context.Context, key string) (entry, bool) {
	var e entry
	ok, err := storage.GetJSON(ctx, m.store, m.key(key), &e)
	if err != nil {
		log.Printf("[CACHE] get %s: %v", key, err)
		m.Clear(ctx, key)
		return entry{}, false
	}
	return e, ok
}

// Valid reports whether a fresh entry exists for key.
func (m *Manager) Valid(ctx context.Context, key string) bool {
	var discard json.RawMessage
	return m.Get(ctx, key, &discard)
}

// Timestamp returns when key was last written, fresh or not.
func (m *Manager) Timestamp(ctx context.Context, key string) (time.Time, bool) {
	e, ok := m.load(ctx, key)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(e.Timestamp), true
}

func (m *Manager) Clear(ctx context.Context, keys ...string) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.key(k)
	}
	if err := m.store.Remove(ctx, full...); err != nil {
		log.Printf("[CACHE] remove %v: %v", keys, err)
	}
}

// ClearAll removes every entry under the manager prefix and nothing else.
func (m *Manager) ClearAll(ctx context.Context) {
	if err := storage.RemovePrefix(ctx, m.store, m.prefix); err != nil {
		log.Printf("[CACHE] clear all: %v", err)
	}
}
