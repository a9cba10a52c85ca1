package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/ratelimit"
)

var bearer = []map[string][]string{{auth.BearerScheme: {}}}

func scoped(scope ratelimit.Scope) map[string]any {
	return map[string]any{
		ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: scope},
	}
}

// RouteOption adjusts how routes are registered.
type RouteOption func(*routeConfig)

type routeConfig struct {
	bulkLimits []ratelimit.LimitConfig
}

// WithBulkLimits gives bulk create its own per-client budget instead of the
// create scope. No limits keeps the create scope.
func WithBulkLimits(limits ...ratelimit.LimitConfig) RouteOption {
	return func(c *routeConfig) {
		c.bulkLimits = limits
	}
}

// RegisterRoutes registers the link, analytics and redirect routes. Each
// operation names the rate limit scope it is charged to.
func RegisterRoutes(
	api huma.API, links *LinkHandler, stats *AnalyticsHandler, redirect *RedirectHandler, opts ...RouteOption,
) {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	bulk := scoped(ratelimit.ScopeCreate)
	if len(cfg.bulkLimits) > 0 {
		bulk = map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeCreate, Limits: cfg.bulkLimits},
		}
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-link",
		Method:        http.MethodPost,
		Path:          "/api/links",
		Summary:       "Create short link",
		Description:   "Creates a short link with a generated code or a custom alias.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Security:      bearer,
		Metadata:      scoped(ratelimit.ScopeCreate),
	}, links.Create)

	huma.Register(api, huma.Operation{
		OperationID:   "create-links-bulk",
		Method:        http.MethodPost,
		Path:          "/api/links/bulk",
		Summary:       "Create short links in bulk",
		Description:   "Creates several links; each item reports its own outcome.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusMultiStatus,
		Security:      bearer,
		Metadata:      bulk,
	}, links.CreateBulk)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/api/links",
		Summary:     "List short links",
		Tags:        []string{"Links"},
		Security:    bearer,
		Metadata:    scoped(ratelimit.ScopeRead),
	}, links.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-link",
		Method:      http.MethodGet,
		Path:        "/api/links/{code}",
		Summary:     "Get short link",
		Tags:        []string{"Links"},
		Security:    bearer,
		Metadata:    scoped(ratelimit.ScopeRead),
	}, links.Get)

	huma.Register(api, huma.Operation{
		OperationID: "update-link",
		Method:      http.MethodPatch,
		Path:        "/api/links/{code}",
		Summary:     "Update short link",
		Description: "Changes the destination, expiry or click limit. Cached redirects are dropped.",
		Tags:        []string{"Links"},
		Security:    bearer,
		Metadata:    scoped(ratelimit.ScopeWrite),
	}, links.Update)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-link",
		Method:        http.MethodDelete,
		Path:          "/api/links/{code}",
		Summary:       "Delete short link",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
		Security:      bearer,
		Metadata:      scoped(ratelimit.ScopeWrite),
	}, links.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "link-analytics",
		Method:      http.MethodGet,
		Path:        "/api/links/{code}/analytics",
		Summary:     "Click analytics",
		Description: "Summarizes the link's clicks over a trailing window of days.",
		Tags:        []string{"Analytics"},
		Security:    bearer,
		Metadata:    scoped(ratelimit.ScopeAnalytics),
	}, stats.Summary)

	huma.Register(api, huma.Operation{
		OperationID: "link-analytics-export",
		Method:      http.MethodGet,
		Path:        "/api/links/{code}/analytics/export",
		Summary:     "Export click analytics",
		Description: "Returns the summary together with every raw click in the window.",
		Tags:        []string{"Analytics"},
		Security:    bearer,
		Metadata:    scoped(ratelimit.ScopeExport),
	}, stats.Export)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Follow short link",
		Description: "Redirects to the destination of the short code.",
		Tags:        []string{"Redirect"},
		Metadata:    scoped(ratelimit.ScopeRedirect),
	}, redirect.Redirect)
}
