package ratelimit

import (
	"context"
	"time"
)

// Store holds fixed-window counters.
type Store interface {
	// Increment adds one to the counter for key and returns the new count and the
	// time left until the counter expires. The first increment of a window sets
	// the expiry to window. Both happen in one atomic step.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}
