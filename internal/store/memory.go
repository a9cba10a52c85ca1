package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Repository.
// A single mutex guards every link, so click claims are atomic per process.
type MemoryStore struct {
	mu     sync.RWMutex
	links  map[shortener.Code]*shortener.Link
	nextID int64
	clicks *MemoryClickStore
}

// NewMemoryStore creates a new in-memory link store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[shortener.Code]*shortener.Link),
	}
}

// WithClickLog makes Delete also drop the link's events from clicks.
func (m *MemoryStore) WithClickLog(clicks *MemoryClickStore) *MemoryStore {
	m.clicks = clicks

	return m
}

func (m *MemoryStore) Create(_ context.Context, link *shortener.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.Code]; ok {
		return shortener.ErrCodeTaken
	}

	m.nextID++
	link.ID = m.nextID
	m.links[link.Code] = cloneLink(link)

	return nil
}

func (m *MemoryStore) FindByCode(_ context.Context, code shortener.Code) (*shortener.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return cloneLink(link), nil
}

func (m *MemoryStore) Exists(_ context.Context, code shortener.Code) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.links[code]

	return ok, nil
}

func (m *MemoryStore) Update(
	_ context.Context, code shortener.Code, update shortener.Update,
) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	update.Apply(link)

	return cloneLink(link), nil
}

func (m *MemoryStore) Delete(_ context.Context, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return shortener.ErrNotFound
	}

	delete(m.links, code)

	if m.clicks != nil {
		m.clicks.DeleteByLink(link.ID)
	}

	return nil
}

func (m *MemoryStore) ClaimClick(_ context.Context, code shortener.Code, now time.Time) (*shortener.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	if err := link.Check(now); err != nil {
		return nil, err
	}

	link.ClickCount++

	return cloneLink(link), nil
}

func (m *MemoryStore) IncrementClicks(_ context.Context, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[code]
	if !ok {
		return shortener.ErrNotFound
	}

	link.ClickCount++

	return nil
}

func (m *MemoryStore) CountCreatedSince(_ context.Context, ownerID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64

	for _, link := range m.links {
		if link.OwnerID == ownerID && !link.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

func (m *MemoryStore) ListByOwner(
	_ context.Context, ownerID string, page shortener.Page,
) ([]shortener.Link, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owned := make([]shortener.Link, 0)

	for _, link := range m.links {
		if link.OwnerID == ownerID {
			owned = append(owned, *cloneLink(link))
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}

		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))

	start := min(page.Offset(), len(owned))
	end := min(start+page.Size, len(owned))

	return owned[start:end], total, nil
}

func cloneLink(link *shortener.Link) *shortener.Link {
	c := *link

	if link.ExpiresAt != nil {
		at := *link.ExpiresAt
		c.ExpiresAt = &at
	}

	if link.ClickLimit != nil {
		limit := *link.ClickLimit
		c.ClickLimit = &limit
	}

	return &c
}

var _ shortener.Repository = (*MemoryStore)(nil)
