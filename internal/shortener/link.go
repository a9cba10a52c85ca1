package shortener

import "time"

// Code represents a short link code.
type Code string

// Link is a short code mapped to a destination, owned by an account.
type Link struct {
	ID          int64
	Code        Code
	Destination string
	OwnerID     string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	ClickLimit  *int64
	ClickCount  int64
}

// Expired reports whether the link's expiry has passed at now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Exhausted reports whether the link has used its whole click budget.
func (l *Link) Exhausted() bool {
	return l.ClickLimit != nil && l.ClickCount >= *l.ClickLimit
}

// Check evaluates redirect policy: expiry first, then the click limit.
func (l *Link) Check(now time.Time) error {
	if l.Expired(now) {
		return &GoneError{Code: l.Code, Reason: GoneExpired}
	}

	if l.Exhausted() {
		return &GoneError{Code: l.Code, Reason: GoneLimitExceeded}
	}

	return nil
}

// Update holds owner-editable attributes. Nil fields are left untouched;
// the Clear flags remove an expiry or click limit.
type Update struct {
	Destination     *string
	ExpiresAt       *time.Time
	ClearExpiresAt  bool
	ClickLimit      *int64
	ClearClickLimit bool
}

// Apply writes the update onto l.
func (u Update) Apply(l *Link) {
	if u.Destination != nil {
		l.Destination = *u.Destination
	}

	switch {
	case u.ClearExpiresAt:
		l.ExpiresAt = nil
	case u.ExpiresAt != nil:
		at := *u.ExpiresAt
		l.ExpiresAt = &at
	}

	switch {
	case u.ClearClickLimit:
		l.ClickLimit = nil
	case u.ClickLimit != nil:
		limit := *u.ClickLimit
		l.ClickLimit = &limit
	}
}

// Page selects a slice of an owner's links, newest first.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}

	return (p.Number - 1) * p.Size
}
