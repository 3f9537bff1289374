package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	payload []byte
	expires time.Time
}

// Memory is the default in-process Backend: a mutex-guarded map with lazy
// expiry — entries are evicted on lookup, there is no background sweep.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time // test hook
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Set implements Backend.
func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{payload: payload, expires: m.now().Add(ttl)}
}

// Clear implements Backend.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// Len reports the number of stored entries, including not-yet-evicted expired
// ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
