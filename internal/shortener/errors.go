package shortener

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("short link not found")
	ErrCodeTaken          = errors.New("short code already in use")
	ErrCodeSpaceExhausted = errors.New("no free short code after retries")
	ErrInvalidAlias       = errors.New("invalid custom alias")
	ErrInvalidURL         = errors.New("invalid destination url")
	ErrQuotaExceeded      = errors.New("daily link quota exceeded")
	ErrStoreUnavailable   = errors.New("link store unavailable")
)

// GoneReason tells why an existing link no longer redirects.
type GoneReason string

const (
	GoneExpired       GoneReason = "expired"
	GoneLimitExceeded GoneReason = "limit_exceeded"
)

// GoneError is returned for links that exist but must not redirect.
type GoneError struct {
	Code   Code
	Reason GoneReason
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("short link %s is gone: %s", e.Code, e.Reason)
}

// IsGone reports whether err is a GoneError and returns its reason.
func IsGone(err error) (GoneReason, bool) {
	var gone *GoneError
	if errors.As(err, &gone) {
		return gone.Reason, true
	}

	return "", false
}

var (
	ErrInvalidClickLimit = errors.New("click limit must be at least 1")
	ErrInvalidExpiry     = errors.New("expiry must be in the future")
	ErrBulkTooLarge      = errors.New("too many links in one bulk request")
)
