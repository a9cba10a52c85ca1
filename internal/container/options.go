package container

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
)

// Telemetry transports.
const (
	// TransportStream publishes clicks to a Redis stream read by cmd/consumer.
	TransportStream = "stream"
	// TransportInline publishes clicks to an in-process channel consumed by the server.
	TransportInline = "inline"
	// TransportDirect appends clicks to the click log inside the request.
	TransportDirect = "direct"
)

// Options configures the service. humacli reads them from flags and SERVICE_* environment variables.
type Options struct {
	Port           int    `default:"8888"           help:"Port to listen on"                                        short:"p"`
	BaseURL        string `default:""               help:"Public base URL of short links, http://localhost:<port> when empty"`
	DatabaseURL    string `default:""               help:"PostgreSQL connection string; links are kept in memory when empty"`
	MigrateOnStart bool   `default:"true"           help:"Apply database migrations at startup"`
	RedisAddr      string `default:"localhost:6379" help:"Redis server address; cache and rate limits stay in process when empty" short:"r"`
	TrustedProxies string `default:""               help:"Comma-separated CIDRs of reverse proxies allowed to set X-Forwarded-For"`
	LogFormat      string `default:"console"        help:"Log format: console or json"`
	LogLevel       string `default:"info"           help:"Minimum log level"`

	CodeLength     int    `default:"6"  help:"Length of generated short codes" short:"c"`
	MaxCodeLength  int    `default:"20" help:"Upper bound for code length and aliases"`
	AliasMinLength int    `default:"3"  help:"Minimum custom alias length"`
	AliasMaxLength int    `default:"20" help:"Maximum custom alias length"`
	CodeAttempts   int    `default:"10" help:"Generated codes tried before giving up"`
	CacheTTL       string `default:"1h" help:"Lifetime of cached redirects; 0 disables the cache"`

	RedirectRate  string `default:"100/1h" help:"Redirects allowed per client, as count/window"`
	ReadRate      string `default:"100/1h" help:"API reads allowed per client"`
	WriteRate     string `default:"60/1m"  help:"API updates and deletes allowed per client"`
	CreateRate    string `default:"10/1m"  help:"Link creations allowed per client"`
	AnalyticsRate string `default:"100/1h" help:"Analytics summaries allowed per client"`
	ExportRate    string `default:"10/1h"  help:"Analytics exports allowed per client"`
	BulkRate      string `default:"5/1m"   help:"Bulk create requests allowed per client; 0 counts them under create-rate"`

	DailyLinkQuota       int `default:"1000" help:"Links an owner may create per 24 hours; 0 disables the quota"`
	BulkMax              int `default:"50"   help:"Maximum links in one bulk request"`
	AnalyticsDefaultDays int `default:"30"   help:"Analytics window when none is requested"`
	AnalyticsMaxDays     int `default:"365"  help:"Largest analytics window"`

	JWTSecret string `default:""          help:"HMAC secret for bearer tokens"`
	JWTIssuer string `default:"shortlink" help:"Issuer of bearer tokens"`

	TelemetryTransport string `default:"stream"         help:"Click hand-off: stream, inline or direct"`
	ConsumerGroup      string `default:"click-recorder" help:"Redis stream consumer group of the click recorder"`
}

// Validate checks the options that cannot be fixed up with a default.
func (o *Options) Validate() error {
	var errs []error

	if o.MaxCodeLength > shortener.MaxCodeLength {
		errs = append(errs, fmt.Errorf("max-code-length cannot exceed %d", shortener.MaxCodeLength))
	}

	if o.CodeLength < 2 || o.CodeLength > o.MaxCodeLength {
		errs = append(errs, fmt.Errorf("code-length must be between 2 and %d", o.MaxCodeLength))
	}

	if o.AliasMinLength < 1 || o.AliasMinLength > o.AliasMaxLength || o.AliasMaxLength > o.MaxCodeLength {
		errs = append(errs, fmt.Errorf("alias lengths must satisfy 1 <= min <= max <= %d", o.MaxCodeLength))
	}

	if o.AnalyticsDefaultDays < 1 || o.AnalyticsDefaultDays > o.AnalyticsMaxDays {
		errs = append(errs, errors.New("analytics-default-days must be between 1 and analytics-max-days"))
	}

	if _, err := middleware.ParseTrustedProxies(o.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("trusted-proxies: %w", err))
	}

	if o.JWTSecret == "" {
		errs = append(errs, errors.New("jwt-secret is required"))
	}

	switch o.TelemetryTransport {
	case TransportStream, TransportInline, TransportDirect:
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry-transport %q", o.TelemetryTransport))
	}

	if _, err := time.ParseDuration(o.CacheTTL); err != nil {
		errs = append(errs, fmt.Errorf("cache-ttl: %w", err))
	}

	for name, rate := range o.rates() {
		if _, _, err := ParseRate(rate); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// PublicURL returns the base of generated short URLs.
func (o *Options) PublicURL() string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// Transport returns the effective telemetry transport. Streams need Redis,
// and a database for cmd/consumer to write into; without either, clicks stay
// in process so the server's own click log sees them.
func (o *Options) Transport() string {
	if o.TelemetryTransport == TransportStream && (o.RedisAddr == "" || o.DatabaseURL == "") {
		return TransportInline
	}

	return o.TelemetryTransport
}

func (o *Options) cacheTTL() time.Duration {
	ttl, _ := time.ParseDuration(o.CacheTTL)

	return ttl
}

func (o *Options) rates() map[string]string {
	return map[string]string{
		"redirect-rate":  o.RedirectRate,
		"read-rate":      o.ReadRate,
		"write-rate":     o.WriteRate,
		"create-rate":    o.CreateRate,
		"analytics-rate": o.AnalyticsRate,
		"export-rate":    o.ExportRate,
		"bulk-rate":      o.BulkRate,
	}
}

// BulkLimits is the bulk create budget, or nil when bulk-rate is zero.
func (o *Options) BulkLimits() []ratelimit.LimitConfig {
	count, window, err := ParseRate(o.BulkRate)
	if err != nil || count == 0 {
		return nil
	}

	return []ratelimit.LimitConfig{{Window: window, Max: count}}
}

// ParseRate parses "count/window", e.g. "100/1h". A count of 0 disables the limit.
func ParseRate(s string) (int64, time.Duration, error) {
	countPart, windowPart, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate %q: want count/window", s)
	}

	count, err := strconv.ParseInt(strings.TrimSpace(countPart), 10, 64)
	if err != nil || count < 0 {
		return 0, 0, fmt.Errorf("rate %q: invalid count", s)
	}

	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil || window <= 0 {
		return 0, 0, fmt.Errorf("rate %q: invalid window", s)
	}

	return count, window, nil
}
