package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTDirectory(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	dir, err := auth.NewJWTDirectory("test-secret", "shortlink")
	require.NoError(t, err)

	t.Run("issued token authenticates", func(t *testing.T) {
		token, err := dir.Issue("alice", time.Hour)
		require.NoError(t, err)

		owner, err := dir.Authenticate(ctx, token)

		require.NoError(t, err)
		assert.Equal(t, "alice", owner)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := dir.Issue("alice", time.Minute)
		require.NoError(t, err)

		later, err := auth.NewJWTDirectory("test-secret", "shortlink")
		require.NoError(t, err)
		later.WithClock(func() time.Time { return now.Add(time.Hour) })

		_, err = later.Authenticate(ctx, token)

		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := auth.NewJWTDirectory("other-secret", "shortlink")
		require.NoError(t, err)

		token, err := other.Issue("mallory", time.Hour)
		require.NoError(t, err)

		_, err = dir.Authenticate(ctx, token)

		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := auth.NewJWTDirectory("test-secret", "someone-else")
		require.NoError(t, err)

		token, err := other.Issue("mallory", time.Hour)
		require.NoError(t, err)

		_, err = dir.Authenticate(ctx, token)

		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("token without expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "alice",
			Issuer:  "shortlink",
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = dir.Authenticate(ctx, token)

		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := dir.Authenticate(ctx, "not-a-token")
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)

		_, err = dir.Authenticate(ctx, "")
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("empty owner", func(t *testing.T) {
		_, err := dir.Issue("", time.Hour)

		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})
}

func TestNewJWTDirectoryRequiresSecret(t *testing.T) {
	_, err := auth.NewJWTDirectory("", "")

	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestOwnerContext(t *testing.T) {
	_, ok := auth.OwnerFromContext(context.Background())
	assert.False(t, ok)

	owner, ok := auth.OwnerFromContext(auth.ContextWithOwner(context.Background(), "alice"))
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)
}
