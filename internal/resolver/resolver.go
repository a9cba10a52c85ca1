// Package resolver turns short codes into redirect destinations.
//
// Lookups go through the cache first and fall back to the link store. A
// cache hit is trusted for as long as the entry lives: expiry and click
// limits are only evaluated against the store. Entries are therefore written
// only for links without a click limit, and never outlive a link's expiry.
// After writing an entry the resolver reads the link back and drops the entry
// if an owner edit raced with it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Links is the part of the link store used on the redirect path.
type Links interface {
	FindByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error)
	ClaimClick(ctx context.Context, code shortener.Code, now time.Time) (*shortener.Link, error)
	IncrementClicks(ctx context.Context, code shortener.Code) error
}

// Classifier maps a user-agent string to client families.
type Classifier interface {
	Classify(raw string) analytics.Client
}

// RequestContext is what the resolver knows about the visitor.
type RequestContext struct {
	ClientIP  string
	UserAgent string
	Referrer  string
}

// Resolution is a granted redirect.
type Resolution struct {
	Destination string
	Draft       analytics.Draft
	Cached      bool
}

// Resolver resolves codes to destinations.
type Resolver struct {
	links      Links
	cache      cache.Cache
	recorder   analytics.Recorder
	classifier Classifier
	ttl        time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// New creates a resolver. A ttl of zero or less disables caching.
func New(
	links Links,
	c cache.Cache,
	recorder analytics.Recorder,
	classifier Classifier,
	ttl time.Duration,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		links:      links,
		cache:      c,
		recorder:   recorder,
		classifier: classifier,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock replaces the resolver clock.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now

	return r
}

// Resolve grants or refuses a redirect for code. It returns
// shortener.ErrNotFound, a *shortener.GoneError, or an error wrapping
// shortener.ErrStoreUnavailable.
func (r *Resolver) Resolve(ctx context.Context, code shortener.Code, req RequestContext) (*Resolution, error) {
	if entry, ok := r.cache.Get(ctx, string(code)); ok {
		return r.resolveCached(ctx, code, entry, req), nil
	}

	link, err := r.links.FindByCode(ctx, code)
	if err != nil {
		return nil, storeError(err)
	}

	now := r.now()

	if err := link.Check(now); err != nil {
		return nil, err
	}

	client := r.classifier.Classify(req.UserAgent)

	claimed, err := r.links.ClaimClick(ctx, code, now)
	if err != nil {
		return nil, storeError(err)
	}

	res := &Resolution{
		Destination: claimed.Destination,
		Draft:       r.draft(claimed.ID, code, now, req, client),
	}

	r.record(ctx, res.Draft)
	r.refresh(ctx, claimed, now)

	return res, nil
}

func (r *Resolver) resolveCached(ctx context.Context, code shortener.Code, entry cache.Entry, req RequestContext) *Resolution {
	now := r.now()

	res := &Resolution{
		Destination: entry.Destination,
		Draft:       r.draft(entry.LinkID, code, now, req, r.classifier.Classify(req.UserAgent)),
		Cached:      true,
	}

	r.record(ctx, res.Draft)

	if err := r.links.IncrementClicks(ctx, code); err != nil {
		r.logger.Warn("click count not incremented",
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	return res
}

func (r *Resolver) draft(
	linkID int64, code shortener.Code, now time.Time, req RequestContext, client analytics.Client,
) analytics.Draft {
	return analytics.Draft{
		LinkID:    linkID,
		Code:      string(code),
		ClickedAt: now,
		IPAddress: req.ClientIP,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
		Client:    client,
	}
}

func (r *Resolver) record(ctx context.Context, draft analytics.Draft) {
	if err := r.recorder.Record(ctx, draft); err != nil {
		r.logger.Warn("click telemetry dropped",
			zap.String("code", draft.Code),
			zap.Int64("link_id", draft.LinkID),
			zap.Error(err),
		)
	}
}

func (r *Resolver) refresh(ctx context.Context, link *shortener.Link, now time.Time) {
	ttl := CacheTTL(link, r.ttl, now)
	if ttl <= 0 {
		return
	}

	r.cache.Put(ctx, string(link.Code), cache.Entry{LinkID: link.ID, Destination: link.Destination}, ttl)

	// An owner edit that landed between the claim and the Put has already
	// invalidated, so the entry just written may be stale. Read back and drop it.
	current, err := r.links.FindByCode(ctx, link.Code)
	if err != nil || !sameResolution(link, current) {
		r.cache.Invalidate(ctx, string(link.Code))
	}
}

// sameResolution reports whether current still resolves the way cached did.
func sameResolution(cached, current *shortener.Link) bool {
	if current.ID != cached.ID || current.Destination != cached.Destination || current.ClickLimit != nil {
		return false
	}

	if current.ExpiresAt == nil || cached.ExpiresAt == nil {
		return current.ExpiresAt == nil && cached.ExpiresAt == nil
	}

	return current.ExpiresAt.Equal(*cached.ExpiresAt)
}

// CacheTTL returns how long a resolution of link may be cached. Links with a
// click limit are not cached; links with an expiry are cached until it.
func CacheTTL(link *shortener.Link, ttl time.Duration, now time.Time) time.Duration {
	if ttl <= 0 || link.ClickLimit != nil {
		return 0
	}

	if link.ExpiresAt != nil {
		ttl = min(ttl, link.ExpiresAt.Sub(now))
	}

	return ttl
}

func storeError(err error) error {
	if errors.Is(err, shortener.ErrNotFound) {
		return err
	}

	if _, gone := shortener.IsGone(err); gone {
		return err
	}

	return fmt.Errorf("%w: %w", shortener.ErrStoreUnavailable, err)
}
