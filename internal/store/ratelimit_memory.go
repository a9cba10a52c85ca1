package store

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type rateWindow struct {
	count   int64
	expires time.Time
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store for
// single-process deployments and tests.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	swept   time.Time
	now     func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// WithClock replaces the store clock.
func (s *RateLimitMemoryStore) WithClock(now func() time.Time) *RateLimitMemoryStore {
	s.now = now

	return s
}

func (s *RateLimitMemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if now.Sub(s.swept) >= sweepInterval {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &rateWindow{expires: now.Add(window)}
		s.windows[key] = w
	}

	w.count++

	return w.count, w.expires.Sub(now), nil
}

// Sweep drops windows that have already expired. Increment also sweeps, at
// most once a minute.
func (s *RateLimitMemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
}

func (s *RateLimitMemoryStore) sweep(now time.Time) {
	s.swept = now

	for key, w := range s.windows {
		if !now.Before(w.expires) {
			delete(s.windows, key)
		}
	}
}
