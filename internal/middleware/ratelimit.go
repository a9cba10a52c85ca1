package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter returns a Huma middleware that applies policy-based rate limiting
// per client IP. The IP comes from RequestMeta when present, else from the peer
// address.
//
// Per-endpoint configuration can be provided via operation metadata using
// ratelimit.MetadataKey:
//   - Disabled: true skips rate limiting
//   - Scope selects the policy limits of a route class
//   - Limits replaces the policy with explicit limits counted per route
//
// Denied requests get a 429 carrying Retry-After, X-RateLimit-Limit and
// X-RateLimit-Window headers.
func RateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		key := handlers.RequestMetaFromContext(ctx.Context()).ClientIP
		if key == "" {
			key = ClientIP(ctx)
		}
		path := operationPath(ctx)

		var exceeded *ratelimit.LimitExceeded
		if cfg != nil && len(cfg.Limits) > 0 {
			// Counters are shared by every request matching the route template.
			exceeded = limiter.AllowLimits(ctx.Context(), key, path, cfg.Limits)
		} else {
			exceeded = limiter.Allow(ctx.Context(), key, resolver.Resolve(ctx))
		}

		if exceeded != nil {
			logger.Warn("rate limit exceeded",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Verdict.Count),
				zap.Int64("max", exceeded.Verdict.Limit),
				zap.Duration("window", exceeded.Verdict.Window),
				zap.String("client_ip", key),
			)
			writeRateLimited(api, ctx, exceeded.Verdict)

			return
		}

		next(ctx)
	}
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

func writeRateLimited(api huma.API, ctx huma.Context, v ratelimit.Verdict) {
	retryAfter := max(v.ResetSeconds(), 1)
	window := int64(v.Window.Seconds())

	ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))
	ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(v.Limit, 10))
	ctx.SetHeader("X-RateLimit-Window", strconv.FormatInt(window, 10))

	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded: %d requests per %s", v.Limit, v.Window),
		&huma.ErrorDetail{Location: "limit", Value: v.Limit, Message: "requests allowed per window"},
		&huma.ErrorDetail{Location: "window", Value: window, Message: "window length in seconds"},
		&huma.ErrorDetail{Location: "retry_after", Value: retryAfter, Message: "seconds until the window resets"},
	)
}
