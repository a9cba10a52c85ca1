package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/serroba/shortlink/internal/messaging"
)

// ErrTelemetrySoftFailure marks a click that could not be recorded. Callers
// log it and carry on.
var ErrTelemetrySoftFailure = errors.New("click telemetry not recorded")

// ErrInvalidEvent is returned by a Store that rejects an event outright, for
// example a field the schema cannot hold. Storing it again will not succeed.
var ErrInvalidEvent = errors.New("invalid click event")

// TopicClickRecorded carries ClickEvent payloads.
const TopicClickRecorded = "link.clicked"

// Recorder accepts one click per successful redirect.
type Recorder interface {
	Record(ctx context.Context, draft Draft) error
}

// StoreRecorder appends events straight to the click log.
type StoreRecorder struct {
	store Store
}

// NewStoreRecorder creates a recorder writing to store.
func NewStoreRecorder(store Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, draft Draft) error {
	if err := r.store.Append(ctx, NewClickEvent(draft)); err != nil {
		return fmt.Errorf("%w: %w", ErrTelemetrySoftFailure, err)
	}

	return nil
}

// PublishRecorder hands events to the message bus; a consumer appends them.
type PublishRecorder struct {
	publish messaging.Publish[ClickEvent]
}

// NewPublishRecorder creates a recorder publishing on TopicClickRecorded.
func NewPublishRecorder(publish messaging.Publish[ClickEvent]) *PublishRecorder {
	return &PublishRecorder{publish: publish}
}

func (r *PublishRecorder) Record(ctx context.Context, draft Draft) error {
	if err := r.publish(ctx, NewClickEvent(draft)); err != nil {
		return fmt.Errorf("%w: %w", ErrTelemetrySoftFailure, err)
	}

	return nil
}

var (
	_ Recorder = (*StoreRecorder)(nil)
	_ Recorder = (*PublishRecorder)(nil)
)
