package shortener

import (
	"fmt"
	"net/url"
	"strings"
)

const maxDestinationLength = 2048

// NormalizeDestination validates a destination URL and canonicalizes its scheme and host.
// - Only http and https are accepted
// - Scheme and host are lowercased
// - Default ports (80 for http, 443 for https) are removed
// Path, query and fragment are kept as given.
func NormalizeDestination(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxDestinationLength {
		return "", fmt.Errorf("%w: must be 1 to %d characters", ErrInvalidURL, maxDestinationLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: host is required", ErrInvalidURL)
	}

	u.Host = strings.ToLower(u.Host)

	host := u.Host
	if strings.HasSuffix(host, ":80") && u.Scheme == "http" {
		u.Host = strings.TrimSuffix(host, ":80")
	} else if strings.HasSuffix(host, ":443") && u.Scheme == "https" {
		u.Host = strings.TrimSuffix(host, ":443")
	}

	return u.String(), nil
}
