package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/analytics"
)

// PostgresClickStore is the PostgreSQL click log.
type PostgresClickStore struct {
	pool *pgxpool.Pool
}

// NewPostgresClickStore creates a new PostgreSQL-backed click log.
func NewPostgresClickStore(pool *pgxpool.Pool) *PostgresClickStore {
	return &PostgresClickStore{pool: pool}
}

// Append is idempotent on the event ID so redelivered messages are harmless.
func (p *PostgresClickStore) Append(ctx context.Context, event *analytics.ClickEvent) error {
	query := `
		INSERT INTO click_events (
			id, link_id, clicked_at, ip_address, user_agent, referrer,
			country, city, device_type, browser, os, is_mobile, is_bot
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		event.ID,
		event.LinkID,
		event.ClickedAt,
		nullableString(event.IPAddress),
		nullableString(event.UserAgent),
		nullableString(event.Referrer),
		event.Country,
		event.City,
		event.DeviceType,
		event.Browser,
		event.OS,
		event.IsMobile,
		event.IsBot,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// Class 22 (data exception) and 23 (integrity violation) reject the row itself.
		if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
			return fmt.Errorf("%w: %s: %w", analytics.ErrInvalidEvent, pgErr.Code, err)
		}

		return fmt.Errorf("append click: %w", err)
	}

	return nil
}

func (p *PostgresClickStore) ListByLink(
	ctx context.Context, linkID int64, since time.Time,
) ([]analytics.ClickEvent, error) {
	query := `
		SELECT id, link_id, clicked_at, ip_address, user_agent, referrer,
		       country, city, device_type, browser, os, is_mobile, is_bot
		FROM click_events
		WHERE link_id = $1 AND clicked_at >= $2
		ORDER BY clicked_at, id
	`

	rows, err := p.pool.Query(ctx, query, linkID, since)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.ClickEvent, error) {
		var (
			e                       analytics.ClickEvent
			ip, userAgent, referrer *string
		)

		err := row.Scan(
			&e.ID,
			&e.LinkID,
			&e.ClickedAt,
			&ip,
			&userAgent,
			&referrer,
			&e.Country,
			&e.City,
			&e.DeviceType,
			&e.Browser,
			&e.OS,
			&e.IsMobile,
			&e.IsBot,
		)

		e.IPAddress = derefString(ip)
		e.UserAgent = derefString(userAgent)
		e.Referrer = derefString(referrer)

		return e, err
	})
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

var _ analytics.Store = (*PostgresClickStore)(nil)
