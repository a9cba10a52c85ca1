package analytics

import (
	"context"
	"time"
)

// Store is the append-only click log.
type Store interface {
	// Append stores an event. Appending an event whose ID is already stored is a no-op.
	Append(ctx context.Context, event *ClickEvent) error
	// ListByLink returns the link's events at or after since, oldest first.
	ListByLink(ctx context.Context, linkID int64, since time.Time) ([]ClickEvent, error)
}
