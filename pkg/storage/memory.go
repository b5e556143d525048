package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type Memory struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers watchers
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()

	m.watchers.emit(Change{Key: key})
	return nil
}

func (m *Memory) Remove(_ context.Context, keys ...string) error {
	var removed []string
	m.mu.Lock()
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			removed = append(removed, k)
		}
	}
	m.mu.Unlock()

	for _, k := range removed {
		m.watchers.emit(Change{Key: k, Deleted: true})
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Watch(fn func(Change)) func() {
	return m.watchers.add(fn)
}

func (m *Memory) Close() error {
	return nil
}
