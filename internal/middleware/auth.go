package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/auth"
	"go.uber.org/zap"
)

// Authenticate returns a Huma middleware that resolves the bearer token of
// operations requiring auth.BearerScheme to an owner id stored in the context.
// Other operations pass through untouched.
func Authenticate(api huma.API, dir auth.Directory, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !requiresBearer(ctx.Operation()) {
			next(ctx)

			return
		}

		token, ok := bearerToken(ctx.Header("Authorization"))
		if !ok {
			unauthorized(api, ctx, "missing bearer token")

			return
		}

		owner, err := dir.Authenticate(ctx.Context(), token)
		if err != nil {
			logger.Debug("bearer token rejected",
				zap.String("path", operationPath(ctx)),
				zap.Error(err),
			)
			unauthorized(api, ctx, "invalid bearer token")

			return
		}

		next(huma.WithContext(ctx, auth.ContextWithOwner(ctx.Context(), owner)))
	}
}

func requiresBearer(op *huma.Operation) bool {
	if op == nil {
		return false
	}

	return slices.ContainsFunc(op.Security, func(req map[string][]string) bool {
		_, ok := req[auth.BearerScheme]

		return ok
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

func unauthorized(api huma.API, ctx huma.Context, msg string) {
	ctx.SetHeader("WWW-Authenticate", `Bearer realm="shortlink"`)
	_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, msg)
}
