package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

// NewClickConsumer subscribes to recorded clicks and appends them to store.
// Appends are retried briefly before the message goes back for redelivery.
func NewClickConsumer(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
) *messaging.Consumer[ClickEvent] {
	return messaging.NewConsumer(subscriber, TopicClickRecorded, AppendHandler(store, logger), logger,
		messaging.WithRetries(3, 100*time.Millisecond))
}

// AppendHandler persists each consumed click event.
func AppendHandler(store Store, logger *zap.Logger) messaging.Handler[ClickEvent] {
	return func(ctx context.Context, event *ClickEvent) error {
		if err := store.Append(ctx, event); err != nil {
			if errors.Is(err, ErrInvalidEvent) {
				return messaging.Permanent(err)
			}

			return err
		}

		logger.Debug("click event stored",
			zap.Int64("link_id", event.LinkID),
			zap.String("event_id", event.ID.String()),
		)

		return nil
	}
}
