package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/resolver"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(*do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		config := huma.DefaultConfig("Shortlink", "1.0.0")
		config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			auth.BearerScheme: {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		}

		proxies, err := middleware.ParseTrustedProxies(opts.TrustedProxies)
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, config)

		api.UseMiddleware(middleware.RequestMeta(api, proxies))
		api.UseMiddleware(middleware.RateLimiter(
			api,
			do.MustInvoke[*ratelimit.PolicyLimiter](i),
			ratelimit.NewOperationScopeResolver(),
			logger,
		))
		api.UseMiddleware(middleware.Authenticate(api, do.MustInvoke[*auth.JWTDirectory](i), logger))

		health.RegisterRoutes(api, healthHandler(i))

		service := do.MustInvoke[*shortener.Service](i)
		window := handlers.AnalyticsWindow{DefaultDays: opts.AnalyticsDefaultDays, MaxDays: opts.AnalyticsMaxDays}

		handlers.RegisterRoutes(api,
			handlers.NewLinkHandler(service, opts.PublicURL(), logger),
			handlers.NewAnalyticsHandler(service, do.MustInvoke[*analytics.Aggregator](i), window, logger),
			handlers.NewRedirectHandler(do.MustInvoke[*resolver.Resolver](i), logger),
			handlers.WithBulkLimits(opts.BulkLimits()...),
		)

		return api, nil
	})
}

// healthHandler leaves a checker unset for each dependency the process runs without.
func healthHandler(i *do.Injector) *health.Handler {
	var redisChecker, postgresChecker health.Checker

	if r := do.MustInvoke[*Redis](i); r != nil {
		redisChecker = health.NewRedisChecker(r.Client)
	}

	if pg := do.MustInvoke[*Postgres](i); pg != nil {
		postgresChecker = pg.Pool
	}

	return health.NewHandler(redisChecker, postgresChecker)
}
