// Package auth resolves bearer credentials to owner identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BearerScheme names the OpenAPI security scheme of operations that require a token.
const BearerScheme = "bearer"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingSecret   = errors.New("jwt secret is required")
)

// Directory authenticates a credential and yields an opaque owner id.
type Directory interface {
	Authenticate(ctx context.Context, credential string) (string, error)
}

// JWTDirectory accepts HS256 tokens whose subject is the owner id.
type JWTDirectory struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTDirectory creates a directory signing and verifying with secret.
// When issuer is set, tokens from other issuers are refused.
func NewJWTDirectory(secret, issuer string) (*JWTDirectory, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	return &JWTDirectory{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock replaces the clock used for issuing and validating tokens.
func (d *JWTDirectory) WithClock(now func() time.Time) *JWTDirectory {
	d.now = now

	return d
}

// Issue signs a token for ownerID valid for ttl.
func (d *JWTDirectory) Issue(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: empty owner", ErrUnauthenticated)
	}

	now := d.now()
	claims := &jwt.RegisteredClaims{
		Subject:   ownerID,
		Issuer:    d.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

func (d *JWTDirectory) Authenticate(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(d.now),
	}
	if d.issuer != "" {
		opts = append(opts, jwt.WithIssuer(d.issuer))
	}

	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return d.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	return claims.Subject, nil
}

var _ Directory = (*JWTDirectory)(nil)

type ownerKey struct{}

// ContextWithOwner returns a context carrying the authenticated owner id.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the authenticated owner id, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)

	return owner, ok && owner != ""
}
