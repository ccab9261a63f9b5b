package history

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. This is the default backend: fast,
// no persistence, everything lost on process exit.
//
// MemoryStore is thread-safe using sync.RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event

	// maxEntries bounds the store; the oldest events are evicted when the
	// bound is reached.
	maxEntries int
}

// MemoryStoreConfig configures the memory store.
type MemoryStoreConfig struct {
	// MaxEntries is the maximum number of events to retain.
	// Default: 10,000
	MaxEntries int
}

// NewMemoryStore creates an in-memory event store with default settings.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(MemoryStoreConfig{})
}

// NewMemoryStoreWithConfig creates an in-memory event store with custom
// configuration.
func NewMemoryStoreWithConfig(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}

	return &MemoryStore{
		maxEntries: cfg.MaxEntries,
	}
}

// Record persists one event.
func (m *MemoryStore) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		return fmt.Errorf("event ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) >= m.maxEntries {
		// Evict the oldest; events are kept in insertion order.
		copy(m.events, m.events[1:])
		m.events = m.events[:len(m.events)-1]
	}
	m.events = append(m.events, event)

	return nil
}

// List returns the most recent events, newest first.
func (m *MemoryStore) List(ctx context.Context, keyClass string, limit int) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if keyClass != "" && m.events[i].KeyClass != keyClass {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Count returns the total number of stored events.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.events)), nil
}

// Prune deletes events older than the cutoff.
func (m *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	for _, ev := range m.events {
		if !ev.Time.Before(olderThan) {
			kept = append(kept, ev)
		}
	}
	deleted := len(m.events) - len(kept)
	for i := len(kept); i < len(m.events); i++ {
		m.events[i] = nil
	}
	m.events = kept

	return deleted, nil
}

// Close releases resources. A no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
