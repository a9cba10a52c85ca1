package messaging

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// ConsumerStats counts message outcomes since the consumer started.
type ConsumerStats struct {
	Processed int64
	Failed    int64
	Dropped   int64
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	retries uint64
	backoff time.Duration
}

// WithRetries retries a failing handler up to n more times with exponential
// backoff starting at base before the message is nacked.
func WithRetries(n uint64, base time.Duration) ConsumerOption {
	return func(c *consumerConfig) {
		c.retries = n
		c.backoff = base
	}
}

// Consumer subscribes to a topic and processes messages with a typed handler.
// Messages that fail to decode, and handler errors marked Permanent, are acked
// and dropped; other handler failures are nacked for redelivery once the
// retries are spent.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	cfg        consumerConfig
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	cfg := consumerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		cfg:        cfg,
		logger:     logger.With(zap.String("topic", topic)),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Stats returns the outcome counters.
func (c *Consumer[T]) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Failed:    c.failed.Load(),
		Dropped:   c.dropped.Load(),
	}
}

// Start subscribes and processes messages in a background goroutine.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		cancel()

		return err
	}

	c.cancel = cancel

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.dropped.Add(1)
		c.logger.Error("dropping undecodable message",
			zap.String("message_id", msg.UUID),
			zap.Error(err),
		)
		msg.Ack()

		return
	}

	if err := c.handle(ctx, &event); err != nil {
		if IsPermanent(err) {
			c.dropped.Add(1)
			c.logger.Error("dropping event that cannot be handled",
				zap.String("message_id", msg.UUID),
				zap.Error(err),
			)
			msg.Ack()

			return
		}

		c.failed.Add(1)
		c.logger.Error("failed to handle event",
			zap.String("message_id", msg.UUID),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	c.processed.Add(1)
	msg.Ack()

	c.logger.Debug("processed event", zap.String("message_id", msg.UUID))
}

func (c *Consumer[T]) handle(ctx context.Context, event *T) error {
	if c.cfg.retries == 0 {
		return c.handler(ctx, event)
	}

	backoff := retry.WithMaxRetries(c.cfg.retries, retry.NewExponential(c.cfg.backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.handler(ctx, event); err != nil {
			if IsPermanent(err) {
				return err
			}

			c.logger.Warn("retrying event", zap.Error(err))

			return retry.RetryableError(err)
		}

		return nil
	})
}

// Shutdown stops the consumer and waits for the in-flight message to complete.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	stats := c.Stats()
	c.logger.Info("consumer stopped",
		zap.Int64("processed", stats.Processed),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped),
	)

	return nil
}
