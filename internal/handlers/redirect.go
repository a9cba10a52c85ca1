package handlers

import (
	"context"
	"net/http"

	"github.com/serroba/shortlink/internal/resolver"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// RedirectHandler serves short link redirects.
type RedirectHandler struct {
	resolver *resolver.Resolver
	logger   *zap.Logger
}

// NewRedirectHandler creates a new redirect handler.
func NewRedirectHandler(r *resolver.Resolver, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{resolver: r, logger: logger}
}

func (h *RedirectHandler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	meta := RequestMetaFromContext(ctx)

	res, err := h.resolver.Resolve(ctx, shortener.Code(req.Code), resolver.RequestContext{
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	})
	if err != nil {
		if _, gone := shortener.IsGone(err); !gone && !isNotFound(err) {
			h.logger.Error("failed to resolve short link",
				zap.String("code", req.Code),
				zap.Error(err),
			)
		}

		return nil, httpError(err)
	}

	resp := &RedirectResponse{Status: http.StatusFound}
	resp.Headers.Location = res.Destination
	// Every visit has to reach the server to be counted.
	resp.Headers.CacheControl = "private, no-store"

	return resp, nil
}
