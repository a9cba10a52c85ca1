package resolver_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/resolver"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const iphone = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 " +
	"(KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type fixture struct {
	resolver *resolver.Resolver
	links    *store.MemoryStore
	cache    *store.MemoryCache
	clicks   *store.MemoryClickStore
}

func newFixture(t *testing.T, ttl time.Duration) fixture {
	t.Helper()

	f := fixture{
		links:  store.NewMemoryStore(),
		cache:  store.NewMemoryCache(time.Minute),
		clicks: store.NewMemoryClickStore(),
	}

	f.resolver = resolver.New(
		f.links,
		f.cache,
		analytics.NewStoreRecorder(f.clicks),
		analytics.NewClassifier(0),
		ttl,
		zap.NewNop(),
	).WithClock(func() time.Time { return now })

	return f
}

func (f fixture) add(t *testing.T, link *shortener.Link) *shortener.Link {
	t.Helper()

	if link.Destination == "" {
		link.Destination = "https://example.com/landing"
	}

	link.OwnerID = "alice"
	link.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, f.links.Create(context.Background(), link))

	return link
}

func (f fixture) clickCount(t *testing.T, code shortener.Code) int64 {
	t.Helper()

	link, err := f.links.FindByCode(context.Background(), code)
	require.NoError(t, err)

	return link.ClickCount
}

func (f fixture) events(t *testing.T, linkID int64) []analytics.ClickEvent {
	t.Helper()

	events, err := f.clicks.ListByLink(context.Background(), linkID, time.Time{})
	require.NoError(t, err)

	return events
}

func visitor() resolver.RequestContext {
	return resolver.RequestContext{ClientIP: "198.51.100.4", UserAgent: iphone, Referrer: "https://news.example"}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown code", func(t *testing.T) {
		f := newFixture(t, time.Hour)

		_, err := f.resolver.Resolve(ctx, "missing", visitor())

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("redirect records telemetry", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		link := f.add(t, &shortener.Link{Code: "abc123"})

		res, err := f.resolver.Resolve(ctx, "abc123", visitor())

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/landing", res.Destination)
		assert.False(t, res.Cached)
		assert.Equal(t, int64(1), f.clickCount(t, "abc123"))

		events := f.events(t, link.ID)
		require.Len(t, events, 1)
		assert.Equal(t, "198.51.100.4", events[0].IPAddress)
		assert.Equal(t, "https://news.example", events[0].Referrer)
		assert.Equal(t, analytics.DeviceMobile, *events[0].DeviceType)
		assert.True(t, events[0].IsMobile)
	})

	t.Run("expired link without cache", func(t *testing.T) {
		f := newFixture(t, 0)
		expires := now.Add(-time.Second)
		f.add(t, &shortener.Link{Code: "old", ExpiresAt: &expires})

		_, err := f.resolver.Resolve(ctx, "old", visitor())

		reason, gone := shortener.IsGone(err)
		assert.True(t, gone)
		assert.Equal(t, shortener.GoneExpired, reason)
		assert.Zero(t, f.clickCount(t, "old"))
	})

	t.Run("click limit", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		limit := int64(3)
		link := f.add(t, &shortener.Link{Code: "limited", ClickLimit: &limit})

		for range 3 {
			res, err := f.resolver.Resolve(ctx, "limited", visitor())
			require.NoError(t, err)
			assert.False(t, res.Cached, "limited links are never cached")
		}

		_, err := f.resolver.Resolve(ctx, "limited", visitor())

		reason, gone := shortener.IsGone(err)
		assert.True(t, gone)
		assert.Equal(t, shortener.GoneLimitExceeded, reason)
		assert.Equal(t, int64(3), f.clickCount(t, "limited"))
		assert.Len(t, f.events(t, link.ID), 3)
	})

	t.Run("click limit under concurrent load", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		limit := int64(10)
		f.add(t, &shortener.Link{Code: "race", ClickLimit: &limit})

		var (
			granted, refused atomic.Int64
			wg               sync.WaitGroup
		)

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, err := f.resolver.Resolve(ctx, "race", visitor())
				if err == nil {
					granted.Add(1)

					return
				}

				if _, gone := shortener.IsGone(err); gone {
					refused.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, limit, granted.Load())
		assert.Equal(t, int64(40), refused.Load())
		assert.Equal(t, limit, f.clickCount(t, "race"))
	})
}

func TestResolveCache(t *testing.T) {
	ctx := context.Background()

	t.Run("hit still counts and records", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		link := f.add(t, &shortener.Link{Code: "hot"})

		first, err := f.resolver.Resolve(ctx, "hot", visitor())
		require.NoError(t, err)
		assert.False(t, first.Cached)

		second, err := f.resolver.Resolve(ctx, "hot", visitor())
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Destination, second.Destination)
		assert.Equal(t, link.ID, second.Draft.LinkID)

		assert.Equal(t, int64(2), f.clickCount(t, "hot"))
		assert.Len(t, f.events(t, link.ID), 2)
	})

	t.Run("hit is served until invalidated", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		f.add(t, &shortener.Link{Code: "stale"})

		_, err := f.resolver.Resolve(ctx, "stale", visitor())
		require.NoError(t, err)

		dest := "https://example.com/moved"
		_, err = f.links.Update(ctx, "stale", shortener.Update{Destination: &dest})
		require.NoError(t, err)

		res, err := f.resolver.Resolve(ctx, "stale", visitor())
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/landing", res.Destination)

		f.cache.Invalidate(ctx, "stale")

		res, err = f.resolver.Resolve(ctx, "stale", visitor())
		require.NoError(t, err)
		assert.Equal(t, dest, res.Destination)
	})

	t.Run("owner update invalidates", func(t *testing.T) {
		f := newFixture(t, time.Hour)
		gen, err := shortener.NewGenerator(f.links, shortener.Alphabet, 6, 10)
		require.NoError(t, err)

		svc := shortener.NewService(f.links, gen, shortener.AliasPolicy{MinLength: 3, MaxLength: 20}, f.cache,
			shortener.ServiceConfig{DailyQuota: 10, BulkMax: 10}, zap.NewNop())

		link, err := svc.Create(ctx, "alice", shortener.CreateInput{Destination: "https://example.com/a", Alias: "edit"})
		require.NoError(t, err)

		_, err = f.resolver.Resolve(ctx, link.Code, visitor())
		require.NoError(t, err)

		dest := "https://example.com/b"
		_, err = svc.Update(ctx, "alice", link.Code, shortener.Update{Destination: &dest})
		require.NoError(t, err)

		res, err := f.resolver.Resolve(ctx, link.Code, visitor())
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Equal(t, dest, res.Destination)
	})

	t.Run("limit set while a miss is in flight is not bypassed by the cache", func(t *testing.T) {
		links := store.NewMemoryStore()
		c := store.NewMemoryCache(time.Minute)
		gen, err := shortener.NewGenerator(links, shortener.Alphabet, 6, 10)
		require.NoError(t, err)

		svc := shortener.NewService(links, gen, shortener.AliasPolicy{MinLength: 3, MaxLength: 20}, c,
			shortener.ServiceConfig{DailyQuota: 10, BulkMax: 10}, zap.NewNop())

		link, err := svc.Create(ctx, "alice", shortener.CreateInput{Destination: "https://example.com/a", Alias: "racy"})
		require.NoError(t, err)

		limit := int64(1)
		edited := &editAfterClaim{MemoryStore: links, edit: func() {
			_, err := svc.Update(ctx, "alice", link.Code, shortener.Update{ClickLimit: &limit})
			require.NoError(t, err)
		}}

		r := resolver.New(edited, c, analytics.NewStoreRecorder(store.NewMemoryClickStore()),
			analytics.NewClassifier(0), time.Hour, zap.NewNop())

		_, err = r.Resolve(ctx, link.Code, visitor())
		require.NoError(t, err)

		_, cached := c.Get(ctx, string(link.Code))
		assert.False(t, cached)

		_, err = r.Resolve(ctx, link.Code, visitor())
		reason, gone := shortener.IsGone(err)
		require.True(t, gone, "got %v", err)
		assert.Equal(t, shortener.GoneLimitExceeded, reason)

		stored, err := links.FindByCode(ctx, link.Code)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.ClickCount)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, 0)
		f.add(t, &shortener.Link{Code: "cold"})

		for range 2 {
			res, err := f.resolver.Resolve(ctx, "cold", visitor())
			require.NoError(t, err)
			assert.False(t, res.Cached)
		}
	})
}

func TestCacheTTL(t *testing.T) {
	limit := int64(5)
	soon := now.Add(10 * time.Minute)
	later := now.Add(48 * time.Hour)

	tests := []struct {
		name string
		link shortener.Link
		ttl  time.Duration
		want time.Duration
	}{
		{name: "plain link", link: shortener.Link{}, ttl: time.Hour, want: time.Hour},
		{name: "caching disabled", link: shortener.Link{}, ttl: 0, want: 0},
		{name: "click limit", link: shortener.Link{ClickLimit: &limit}, ttl: time.Hour, want: 0},
		{name: "expiry before ttl", link: shortener.Link{ExpiresAt: &soon}, ttl: time.Hour, want: 10 * time.Minute},
		{name: "expiry after ttl", link: shortener.Link{ExpiresAt: &later}, ttl: time.Hour, want: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.CacheTTL(&tt.link, tt.ttl, now))
		})
	}
}

type brokenLinks struct{}

func (brokenLinks) FindByCode(context.Context, shortener.Code) (*shortener.Link, error) {
	return nil, errors.New("connection reset")
}

func (brokenLinks) ClaimClick(context.Context, shortener.Code, time.Time) (*shortener.Link, error) {
	return nil, errors.New("connection reset")
}

func (brokenLinks) IncrementClicks(context.Context, shortener.Code) error {
	return errors.New("connection reset")
}

// editAfterClaim runs edit once, right after the first successful claim.
type editAfterClaim struct {
	*store.MemoryStore
	edit func()
	once sync.Once
}

func (e *editAfterClaim) ClaimClick(ctx context.Context, code shortener.Code, at time.Time) (*shortener.Link, error) {
	link, err := e.MemoryStore.ClaimClick(ctx, code, at)
	if err == nil {
		e.once.Do(e.edit)
	}

	return link, err
}

type brokenRecorder struct{}

func (brokenRecorder) Record(context.Context, analytics.Draft) error {
	return analytics.ErrTelemetrySoftFailure
}

func TestResolveFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("store unavailable", func(t *testing.T) {
		r := resolver.New(brokenLinks{}, cache.Noop{}, brokenRecorder{}, analytics.NewClassifier(0), time.Hour, zap.NewNop())

		_, err := r.Resolve(ctx, "abc", visitor())

		assert.ErrorIs(t, err, shortener.ErrStoreUnavailable)
	})

	t.Run("telemetry failure does not block the redirect", func(t *testing.T) {
		links := store.NewMemoryStore()
		require.NoError(t, links.Create(ctx, &shortener.Link{Code: "abc", Destination: "https://example.com", CreatedAt: now}))

		r := resolver.New(links, cache.Noop{}, brokenRecorder{}, analytics.NewClassifier(0), time.Hour, zap.NewNop())

		res, err := r.Resolve(ctx, "abc", visitor())

		require.NoError(t, err)
		assert.Equal(t, "https://example.com", res.Destination)
	})

	t.Run("cache hit survives a store outage", func(t *testing.T) {
		c := store.NewMemoryCache(time.Minute)
		c.Put(ctx, "abc", cache.Entry{LinkID: 1, Destination: "https://example.com"}, time.Minute)

		r := resolver.New(brokenLinks{}, c, brokenRecorder{}, analytics.NewClassifier(0), time.Hour, zap.NewNop())

		res, err := r.Resolve(ctx, "abc", visitor())

		require.NoError(t, err)
		assert.True(t, res.Cached)
	})
}

func TestAliasRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	gen, err := shortener.NewGenerator(f.links, shortener.Alphabet, 6, 10)
	require.NoError(t, err)

	svc := shortener.NewService(f.links, gen,
		shortener.AliasPolicy{MinLength: 3, MaxLength: 20, Reserved: shortener.DefaultReserved()},
		f.cache, shortener.ServiceConfig{DailyQuota: 10, BulkMax: 10}, zap.NewNop()).
		WithClock(func() time.Time { return now.Add(-time.Minute) })

	link, err := svc.Create(ctx, "alice", shortener.CreateInput{Destination: "https://example.com/spring", Alias: "spring"})
	require.NoError(t, err)

	res, err := f.resolver.Resolve(ctx, "spring", visitor())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/spring", res.Destination)

	export, err := analytics.NewAggregator(f.clicks).
		WithClock(func() time.Time { return now }).
		Export(ctx, link.ID, 30)

	require.NoError(t, err)
	assert.Equal(t, int64(1), export.Report.TotalClicks)
	assert.Equal(t, int64(1), export.Report.UniqueVisitors)
	require.Len(t, export.Events, 1)
	assert.Equal(t, link.ID, export.Events[0].LinkID)
}
