package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/cache"
	"go.uber.org/zap"
)

// RedisCache keeps resolved links in Redis hashes under "link:<code>".
// Failures are logged and reported as misses.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	logger *zap.Logger
}

// NewRedisCache creates a new Redis-backed resolution cache.
func NewRedisCache(client redis.Cmdable, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "link:",
		logger: logger,
	}
}

func (r *RedisCache) Get(ctx context.Context, code string) (cache.Entry, bool) {
	result, err := r.client.HGetAll(ctx, r.prefix+code).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache read failed", zap.String("code", code), zap.Error(err))
		}

		return cache.Entry{}, false
	}

	destination, ok := result["destination"]
	if !ok || destination == "" {
		return cache.Entry{}, false
	}

	linkID, err := strconv.ParseInt(result["link_id"], 10, 64)
	if err != nil {
		r.logger.Warn("discarding malformed cache entry", zap.String("code", code), zap.Error(err))
		r.Invalidate(ctx, code)

		return cache.Entry{}, false
	}

	return cache.Entry{LinkID: linkID, Destination: destination}, true
}

// Put writes the entry and its expiry in one round trip. A non-positive ttl writes nothing.
func (r *RedisCache) Put(ctx context.Context, code string, entry cache.Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	key := r.prefix + code

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"link_id":     entry.LinkID,
			"destination": entry.Destination,
		})
		pipe.PExpire(ctx, key, ttl)

		return nil
	})
	if err != nil {
		r.logger.Warn("cache write failed", zap.String("code", code), zap.Error(err))
	}
}

func (r *RedisCache) Invalidate(ctx context.Context, code string) {
	if err := r.client.Del(ctx, r.prefix+code).Err(); err != nil {
		r.logger.Error("cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}

var _ cache.Cache = (*RedisCache)(nil)
