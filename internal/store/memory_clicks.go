package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/shortlink/internal/analytics"
)

// MemoryClickStore is an in-memory click log.
type MemoryClickStore struct {
	mu     sync.RWMutex
	events map[int64][]analytics.ClickEvent
	seen   map[uuid.UUID]struct{}
}

// NewMemoryClickStore creates a new in-memory click log.
func NewMemoryClickStore() *MemoryClickStore {
	return &MemoryClickStore{
		events: make(map[int64][]analytics.ClickEvent),
		seen:   make(map[uuid.UUID]struct{}),
	}
}

func (m *MemoryClickStore) Append(_ context.Context, event *analytics.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[event.ID]; ok {
		return nil
	}

	m.seen[event.ID] = struct{}{}
	m.events[event.LinkID] = append(m.events[event.LinkID], *event)

	return nil
}

func (m *MemoryClickStore) ListByLink(_ context.Context, linkID int64, since time.Time) ([]analytics.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]analytics.ClickEvent, 0, len(m.events[linkID]))

	for _, e := range m.events[linkID] {
		if !e.ClickedAt.Before(since) {
			result = append(result, e)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ClickedAt.Before(result[j].ClickedAt)
	})

	return result, nil
}

// DeleteByLink drops every event of the link. Their IDs stay known, so a
// redelivered event is still a no-op.
func (m *MemoryClickStore) DeleteByLink(linkID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.events, linkID)
}

var _ analytics.Store = (*MemoryClickStore)(nil)
