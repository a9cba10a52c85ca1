package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/shortener"
)

// httpError maps domain errors to API errors. Unknown errors become a 500
// without leaking their message.
func httpError(err error) error {
	if reason, gone := shortener.IsGone(err); gone {
		return huma.Error410Gone("short link is no longer available",
			&huma.ErrorDetail{Location: "reason", Value: string(reason), Message: "why the link stopped redirecting"},
		)
	}

	switch {
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short link not found")
	case errors.Is(err, shortener.ErrCodeTaken):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, shortener.ErrInvalidURL),
		errors.Is(err, shortener.ErrInvalidAlias),
		errors.Is(err, shortener.ErrInvalidClickLimit),
		errors.Is(err, shortener.ErrInvalidExpiry),
		errors.Is(err, shortener.ErrBulkTooLarge):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, shortener.ErrQuotaExceeded):
		return huma.Error429TooManyRequests(err.Error())
	case errors.Is(err, shortener.ErrCodeSpaceExhausted):
		return huma.Error503ServiceUnavailable("no short code available, try again later")
	case errors.Is(err, shortener.ErrStoreUnavailable):
		return huma.Error503ServiceUnavailable("link store unavailable")
	default:
		return huma.Error500InternalServerError("internal server error")
	}
}
