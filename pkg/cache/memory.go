package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu    sync.Mutex
	items map[string]item

	// Now returns the current time. Tests replace it to move time forward.
	Now func() time.Time
}

type item struct {
	val []byte
	// exp is the zero time for entries that never expire.
	exp time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]item),
		Now:   time.Now,
	}
}

func (m *Memory) expired(it item, now time.Time) bool {
	return !it.exp.IsZero() && !now.Before(it.exp)
}

// Get returns the value stored for key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if m.expired(it, m.Now()) {
		delete(m.items, key)
		return nil, false
	}
	return it.val, true
}

// Put stores value under key for ttl.
func (m *Memory) Put(key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := item{val: value}
	if ttl > 0 {
		it.exp = m.Now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

// Has reports whether key holds an unexpired value.
func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Forget removes key.
func (m *Memory) Forget(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Pull removes key and returns its value.
func (m *Memory) Pull(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	delete(m.items, key)
	if m.expired(it, m.Now()) {
		return nil, false
	}
	return it.val, true
}

// Len returns the number of entries held, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep deletes expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	n := 0
	for k, it := range m.items {
		if m.expired(it, now) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// RunSweeper sweeps expired entries every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.DebugContext(ctx, "swept expired cache entries", slog.Int("count", n))
			}
		}
	}
}
