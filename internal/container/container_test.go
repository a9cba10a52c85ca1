package container_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInjector(t *testing.T, opts *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.CachePackage(injector)
	container.RateLimitPackage(injector)
	container.ChannelPackage(injector)
	container.PublisherGroupPackage(injector)
	container.ConsumerGroupPackage(injector)
	container.TelemetryPackage(injector)
	container.ServicesPackage(injector)
	container.HTTPPackage(injector)

	t.Cleanup(func() { _ = injector.Shutdown() })

	return injector
}

func serve(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestMemoryModeServesEndToEnd(t *testing.T) {
	opts := memoryOptions()
	opts.TelemetryTransport = container.TransportInline

	injector := newInjector(t, opts)

	router := do.MustInvoke[*chi.Mux](injector)
	_ = do.MustInvoke[huma.API](injector)

	group := do.MustInvoke[*messaging.ConsumerGroup](injector)
	require.NoError(t, group.Start(context.Background()))

	token, err := do.MustInvoke[*auth.JWTDirectory](injector).Issue("alice", time.Hour)
	require.NoError(t, err)

	t.Run("health reports disabled dependencies", func(t *testing.T) {
		w := serve(t, router, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "disabled", body["redis"])
		assert.Equal(t, "disabled", body["postgres"])
	})

	t.Run("create requires a token", func(t *testing.T) {
		w := serve(t, router, http.MethodPost, "/api/links", "", map[string]any{"destination": "https://example.com"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("created link redirects and the click reaches analytics", func(t *testing.T) {
		w := serve(t, router, http.MethodPost, "/api/links", token,
			map[string]any{"destination": "https://example.com/docs", "alias": "docslink"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = serve(t, router, http.MethodGet, "/docslink", "", nil)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/docs", w.Header().Get("Location"))

		require.Eventually(t, func() bool {
			w := serve(t, router, http.MethodGet, "/api/links/docslink/analytics", token, nil)
			if w.Code != http.StatusOK {
				return false
			}

			var report analytics.Report
			if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
				return false
			}

			return report.TotalClicks == 1
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("deleting the link drops its clicks", func(t *testing.T) {
		link, err := do.MustInvoke[shortener.Repository](injector).FindByCode(context.Background(), "docslink")
		require.NoError(t, err)

		w := serve(t, router, http.MethodDelete, "/api/links/docslink", token, nil)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		events, err := do.MustInvoke[analytics.Store](injector).ListByLink(context.Background(), link.ID, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestDirectTransportRecordsSynchronously(t *testing.T) {
	opts := memoryOptions()
	opts.TelemetryTransport = container.TransportDirect

	injector := newInjector(t, opts)

	recorder := do.MustInvoke[analytics.Recorder](injector)
	assert.IsType(t, &analytics.StoreRecorder{}, recorder)
}

func TestRateLimitPolicyFromOptions(t *testing.T) {
	opts := memoryOptions()
	opts.RedirectRate = "5/1m"

	injector := newInjector(t, opts)

	policy := do.MustInvoke[*ratelimit.PolicyLimiter](injector).Policy()
	assert.Equal(t, []ratelimit.LimitConfig{{Window: time.Minute, Max: 5}}, policy.Limits[ratelimit.ScopeRedirect])
}

func TestInvalidRateFailsPolicy(t *testing.T) {
	opts := memoryOptions()
	opts.CreateRate = "many"

	_, err := container.BuildPolicy(opts)
	assert.Error(t, err)
}
