package ratelimit

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Verdict is the outcome of a single rate limit check.
type Verdict struct {
	Allowed bool
	Limit   int64
	Window  time.Duration
	Count   int64
	ResetIn time.Duration
}

// ResetSeconds returns the time until the window resets, rounded up to whole seconds.
func (v Verdict) ResetSeconds() int64 {
	return int64(math.Ceil(v.ResetIn.Seconds()))
}

// Limiter checks a key against a single limit.
type Limiter interface {
	Check(ctx context.Context, key string, limit LimitConfig) Verdict
}

// FixedWindowLimiter counts requests per key in fixed windows. When the store
// fails the request is allowed.
type FixedWindowLimiter struct {
	store  Store
	logger *zap.Logger
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(store Store, logger *zap.Logger) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		logger: logger,
	}
}

func (l *FixedWindowLimiter) Check(ctx context.Context, key string, limit LimitConfig) Verdict {
	verdict := Verdict{
		Allowed: true,
		Limit:   limit.Max,
		Window:  limit.Window,
	}

	count, ttl, err := l.store.Increment(ctx, key, limit.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)

		return verdict
	}

	if ttl <= 0 || ttl > limit.Window {
		ttl = limit.Window
	}

	verdict.Count = count
	verdict.ResetIn = ttl
	verdict.Allowed = count <= limit.Max

	return verdict
}

var _ Limiter = (*FixedWindowLimiter)(nil)
