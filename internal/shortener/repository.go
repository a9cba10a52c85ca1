package shortener

import (
	"context"
	"time"
)

// Repository is the system of record for links.
type Repository interface {
	// Create inserts a new link and assigns its ID. Returns ErrCodeTaken on a duplicate code.
	Create(ctx context.Context, link *Link) error
	FindByCode(ctx context.Context, code Code) (*Link, error)
	Exists(ctx context.Context, code Code) (bool, error)
	// Update changes owner-editable attributes and returns the stored link.
	Update(ctx context.Context, code Code, update Update) (*Link, error)
	Delete(ctx context.Context, code Code) error
	// ClaimClick increments the click count only if the link is neither expired
	// at now nor at its click limit, in a single atomic step. A refused claim
	// returns a *GoneError.
	ClaimClick(ctx context.Context, code Code, now time.Time) (*Link, error)
	// IncrementClicks adds one click without evaluating policy.
	IncrementClicks(ctx context.Context, code Code) error
	CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int64, error)
	// ListByOwner returns one page of the owner's links and the owner's total.
	ListByOwner(ctx context.Context, ownerID string, page Page) ([]Link, int64, error)
}
