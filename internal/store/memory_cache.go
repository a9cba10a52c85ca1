package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/serroba/shortlink/internal/cache"
)

// MemoryCache is a process-local resolution cache.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates a new in-process cache that sweeps expired entries every cleanup interval.
func NewMemoryCache(cleanup time.Duration) *MemoryCache {
	return &MemoryCache{
		items: gocache.New(gocache.NoExpiration, cleanup),
	}
}

func (m *MemoryCache) Get(_ context.Context, code string) (cache.Entry, bool) {
	v, ok := m.items.Get(code)
	if !ok {
		return cache.Entry{}, false
	}

	entry, ok := v.(cache.Entry)

	return entry, ok
}

func (m *MemoryCache) Put(_ context.Context, code string, entry cache.Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.items.Set(code, entry, ttl)
}

func (m *MemoryCache) Invalidate(_ context.Context, code string) {
	m.items.Delete(code)
}

var _ cache.Cache = (*MemoryCache)(nil)
