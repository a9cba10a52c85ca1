package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ownerOutput struct {
	Body struct {
		Owner string `json:"owner"`
	}
}

func setupAuthAPI(t *testing.T) (*chi.Mux, *auth.JWTDirectory) {
	t.Helper()

	dir, err := auth.NewJWTDirectory("middleware-secret", "")
	require.NoError(t, err)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.Authenticate(api, dir, zap.NewNop()))

	whoami := func(ctx context.Context, _ *struct{}) (*ownerOutput, error) {
		out := &ownerOutput{}
		out.Body.Owner, _ = auth.OwnerFromContext(ctx)

		return out, nil
	}

	huma.Register(api, huma.Operation{
		Method:   http.MethodGet,
		Path:     "/private",
		Security: []map[string][]string{{auth.BearerScheme: {}}},
	}, whoami)

	huma.Register(api, huma.Operation{
		Method: http.MethodGet,
		Path:   "/public",
	}, whoami)

	return router, dir
}

func TestAuthenticate(t *testing.T) {
	router, dir := setupAuthAPI(t)

	token, err := dir.Issue("alice", time.Hour)
	require.NoError(t, err)

	serve := func(path, authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		return w
	}

	t.Run("valid token", func(t *testing.T) {
		w := serve("/private", "Bearer "+token)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"owner":"alice"`)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve("/private", "bearer "+token).Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := serve("/private", "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("/private", "Basic YWxpY2U6cHc=").Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("/private", "Bearer nope").Code)
	})

	t.Run("public operations pass through", func(t *testing.T) {
		w := serve("/public", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"owner":""`)
	})
}
