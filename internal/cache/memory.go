package cache

import (
	"context"
	"sync"
	"time"

	"cropradar/internal/types"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is an in-process Store with per-entry expiry. Expired entries
// are dropped lazily on read and by Sweep.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	clock types.Clock
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{items: make(map[string]memoryItem), clock: clock}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) GetMany(_ context.Context, keys []string) (map[string]Entry, error) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Entry, len(keys))
	for _, k := range keys {
		item, ok := m.items[k]
		if !ok {
			continue
		}
		if !now.Before(item.expiresAt) {
			delete(m.items, k)
			continue
		}
		out[k] = item.entry
	}
	return out, nil
}

func (m *MemoryStore) SetMany(_ context.Context, entries map[string]Entry, ttl time.Duration) error {
	expiresAt := m.clock.Now().Add(ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range entries {
		m.items[k] = memoryItem{entry: e, expiresAt: expiresAt}
	}
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
