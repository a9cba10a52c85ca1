package container

import (
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/auth"
	"github.com/serroba/shortlink/internal/cache"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/resolver"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
)

const (
	cacheCleanup  = 10 * time.Minute
	userAgentMemo = 10 * time.Minute
)

// RepositoryPackage provides the link store and the click log, backed by
// Postgres when configured and by memory otherwise.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		if pg := do.MustInvoke[*Postgres](i); pg != nil {
			return store.NewPostgresStore(pg.Pool), nil
		}

		do.MustInvoke[*zap.Logger](i).Warn("no database configured, links are kept in memory")

		links := store.NewMemoryStore()
		if clicks, ok := do.MustInvoke[analytics.Store](i).(*store.MemoryClickStore); ok {
			links.WithClickLog(clicks)
		}

		return links, nil
	})

	do.Provide(i, func(i *do.Injector) (analytics.Store, error) {
		if pg := do.MustInvoke[*Postgres](i); pg != nil {
			return store.NewPostgresClickStore(pg.Pool), nil
		}

		return store.NewMemoryClickStore(), nil
	})
}

// CachePackage provides the redirect cache.
func CachePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (cache.Cache, error) {
		if r := do.MustInvoke[*Redis](i); r != nil {
			return store.NewRedisCache(r.Client, do.MustInvoke[*zap.Logger](i)), nil
		}

		return store.NewMemoryCache(cacheCleanup), nil
	})
}

// RateLimitPackage provides the policy limiter built from the configured rates.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		policy, err := BuildPolicy(opts)
		if err != nil {
			return nil, err
		}

		var counters ratelimit.Store = store.NewRateLimitMemoryStore()
		if r := do.MustInvoke[*Redis](i); r != nil {
			counters = store.NewRateLimitRedisStore(r.Client)
		}

		return ratelimit.NewPolicyLimiter(ratelimit.NewFixedWindowLimiter(counters, logger), policy), nil
	})
}

// BuildPolicy maps each configured rate onto its scope.
func BuildPolicy(opts *Options) (*ratelimit.Policy, error) {
	b := ratelimit.NewPolicyBuilder()

	for scope, rate := range map[ratelimit.Scope]string{
		ratelimit.ScopeRedirect:  opts.RedirectRate,
		ratelimit.ScopeRead:      opts.ReadRate,
		ratelimit.ScopeWrite:     opts.WriteRate,
		ratelimit.ScopeCreate:    opts.CreateRate,
		ratelimit.ScopeAnalytics: opts.AnalyticsRate,
		ratelimit.ScopeExport:    opts.ExportRate,
	} {
		count, window, err := ParseRate(rate)
		if err != nil {
			return nil, err
		}

		b.AddLimit(scope, count, window)
	}

	return b.Build(), nil
}

// PublisherGroupPackage provides the click publisher for the stream and
// inline transports. Inline needs ChannelPackage.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.Transport() == TransportStream {
			logger := do.MustInvoke[*zap.Logger](i)

			publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
				Client: do.MustInvoke[*Redis](i).Client,
			}, messaging.NewZapLogger(logger))
			if err != nil {
				return nil, err
			}

			return messaging.NewPublisherGroup(publisher), nil
		}

		return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
	})
}

// ConsumerGroupPackage provides the consumer group that appends published
// clicks to the click log.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var subscriber message.Subscriber = do.MustInvoke[*gochannel.GoChannel](i)

		if opts.Transport() == TransportStream {
			sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        do.MustInvoke[*Redis](i).Client,
				ConsumerGroup: opts.ConsumerGroup,
			}, messaging.NewZapLogger(logger))
			if err != nil {
				return nil, err
			}

			subscriber = sub
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewClickConsumer(subscriber, do.MustInvoke[analytics.Store](i), logger))

		return group, nil
	})
}

// ChannelPackage provides the in-process pub/sub shared by the inline
// publisher and consumer.
func ChannelPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{}, messaging.NewZapLogger(logger)), nil
	})
}

// TelemetryPackage provides the click recorder, the user-agent classifier
// and the analytics aggregator.
func TelemetryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (analytics.Recorder, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.Transport() == TransportDirect {
			return analytics.NewStoreRecorder(do.MustInvoke[analytics.Store](i)), nil
		}

		group := do.MustInvoke[*messaging.PublisherGroup](i)
		publish := messaging.NewPublishFunc[analytics.ClickEvent](group.Publisher(), analytics.TopicClickRecorded)

		return analytics.NewPublishRecorder(publish), nil
	})

	do.Provide(i, func(*do.Injector) (*analytics.Classifier, error) {
		return analytics.NewClassifier(userAgentMemo), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.Aggregator, error) {
		return analytics.NewAggregator(do.MustInvoke[analytics.Store](i)), nil
	})
}

// ServicesPackage provides the link service, the resolver and the account directory.
func ServicesPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)
		repo := do.MustInvoke[shortener.Repository](i)

		generator, err := shortener.NewGenerator(repo, shortener.Alphabet, opts.CodeLength, opts.CodeAttempts)
		if err != nil {
			return nil, err
		}

		aliases := shortener.AliasPolicy{
			MinLength: opts.AliasMinLength,
			MaxLength: opts.AliasMaxLength,
			Reserved:  shortener.DefaultReserved(),
		}

		cfg := shortener.ServiceConfig{
			DailyQuota: int64(opts.DailyLinkQuota),
			BulkMax:    opts.BulkMax,
		}

		return shortener.NewService(repo, generator, aliases, do.MustInvoke[cache.Cache](i), cfg,
			do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*resolver.Resolver, error) {
		opts := do.MustInvoke[*Options](i)

		return resolver.New(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[cache.Cache](i),
			do.MustInvoke[analytics.Recorder](i),
			do.MustInvoke[*analytics.Classifier](i),
			opts.cacheTTL(),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*auth.JWTDirectory, error) {
		opts := do.MustInvoke[*Options](i)

		return auth.NewJWTDirectory(opts.JWTSecret, opts.JWTIssuer)
	})
}
