// Package cache defines the best-effort resolution cache that sits in front of the link store.
package cache

import (
	"context"
	"time"
)

// Entry is a cached resolution.
type Entry struct {
	LinkID      int64  `json:"linkId"`
	Destination string `json:"destination"`
}

// Cache is a best-effort, expiring code -> Entry map. Implementations log and
// swallow their own failures; a failed Get is reported as a miss.
type Cache interface {
	Get(ctx context.Context, code string) (Entry, bool)
	Put(ctx context.Context, code string, entry Entry, ttl time.Duration)
	Invalidate(ctx context.Context, code string)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (Entry, bool)         { return Entry{}, false }
func (Noop) Put(context.Context, string, Entry, time.Duration) {}
func (Noop) Invalidate(context.Context, string)                {}

var _ Cache = Noop{}
