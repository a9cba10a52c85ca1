package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/ratelimit"
)

// Dependency states reported by the health endpoint.
const (
	StateHealthy   = "healthy"
	StateUnhealthy = "unhealthy"
	StateDisabled  = "disabled"
)

// Checker defines the interface for checking service health.
// *pgxpool.Pool satisfies it directly.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Cmdable to Checker interface.
type RedisChecker struct {
	client redis.Cmdable
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.Cmdable) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations. A nil checker marks a dependency
// the process runs without.
type Handler struct {
	redis    Checker
	postgres Checker
}

// NewHandler creates a new health handler.
func NewHandler(redis, postgres Checker) *Handler {
	return &Handler{redis: redis, postgres: postgres}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status   string `enum:"ok,degraded"                json:"status"`
		Redis    string `enum:"healthy,unhealthy,disabled" json:"redis"`
		Postgres string `enum:"healthy,unhealthy,disabled" json:"postgres"`
	}
}

// Check performs a health check of the application and its dependencies.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Redis = state(ctx, h.redis)
	resp.Body.Postgres = state(ctx, h.postgres)

	if resp.Body.Redis == StateUnhealthy || resp.Body.Postgres == StateUnhealthy {
		resp.Body.Status = "degraded"
	}

	return resp, nil
}

func state(ctx context.Context, c Checker) string {
	if c == nil {
		return StateDisabled
	}

	if err := c.Ping(ctx); err != nil {
		return StateUnhealthy
	}

	return StateHealthy
}

// RegisterRoutes registers health check routes. Health checks are not rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
