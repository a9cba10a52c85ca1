package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/store"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const startupTimeout = 30 * time.Second

// Redis owns the shared Redis client. It is nil when no address is configured.
type Redis struct {
	*redis.Client
}

// Shutdown closes the client.
func (r *Redis) Shutdown() error {
	if r == nil {
		return nil
	}

	return r.Close()
}

// Postgres owns the connection pool. It is nil when links are kept in memory.
type Postgres struct {
	*pgxpool.Pool
}

// Shutdown closes the pool.
func (p *Postgres) Shutdown() error {
	if p == nil {
		return nil
	}

	p.Close()

	return nil
}

// LoggerPackage provides the process logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a JSON production logger or a console development logger.
func NewLogger(format, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		cfg.Level = lvl
	}

	return cfg.Build()
}

// RedisPackage provides *Redis. An unreachable server is logged and tolerated:
// the cache and the rate limiter both fail open.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisAddr == "" {
			return nil, nil
		}

		logger := do.MustInvoke[*zap.Logger](i)
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()

		err := withRetry(ctx, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		if err != nil {
			logger.Warn("redis unreachable at startup", zap.String("addr", opts.RedisAddr), zap.Error(err))
		}

		return &Redis{Client: client}, nil
	})
}

// PostgresPackage migrates the schema and provides *Postgres.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.DatabaseURL == "" {
			return nil, nil
		}

		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()

		if opts.MigrateOnStart {
			err := withRetry(ctx, func(context.Context) error {
				return store.Migrate(opts.DatabaseURL)
			})
			if err != nil {
				return nil, err
			}

			logger.Info("database migrated")
		}

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}

		if err := withRetry(ctx, pool.Ping); err != nil {
			pool.Close()

			return nil, fmt.Errorf("postgres ping: %w", err)
		}

		return &Postgres{Pool: pool}, nil
	})
}

func withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}

		return nil
	})
}
