package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/shortener"
)

const uniqueViolation = "23505"

const linkColumns = `id, code, destination, owner_id, created_at, expires_at, click_limit, click_count`

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed link store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Create(ctx context.Context, link *shortener.Link) error {
	query := `
		INSERT INTO links (code, destination, owner_id, created_at, expires_at, click_limit, click_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := p.pool.QueryRow(ctx, query,
		string(link.Code),
		link.Destination,
		link.OwnerID,
		link.CreatedAt,
		link.ExpiresAt,
		link.ClickLimit,
		link.ClickCount,
	).Scan(&link.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shortener.ErrCodeTaken
		}

		return err
	}

	return nil
}

func (p *PostgresStore) FindByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE code = $1`

	return scanLink(p.pool.QueryRow(ctx, query, string(code)))
}

func (p *PostgresStore) Exists(ctx context.Context, code shortener.Code) (bool, error) {
	var exists bool

	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM links WHERE code = $1)`, string(code)).Scan(&exists)

	return exists, err
}

func (p *PostgresStore) Update(
	ctx context.Context, code shortener.Code, update shortener.Update,
) (*shortener.Link, error) {
	query := `
		UPDATE links SET
			destination = COALESCE($2, destination),
			expires_at  = CASE WHEN $3 THEN NULL ELSE COALESCE($4, expires_at) END,
			click_limit = CASE WHEN $5 THEN NULL ELSE COALESCE($6, click_limit) END
		WHERE code = $1
		RETURNING ` + linkColumns

	return scanLink(p.pool.QueryRow(ctx, query,
		string(code),
		update.Destination,
		update.ClearExpiresAt,
		update.ExpiresAt,
		update.ClearClickLimit,
		update.ClickLimit,
	))
}

// Delete removes the link and its click log in one transaction.
func (p *PostgresStore) Delete(ctx context.Context, code shortener.Code) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var id int64

		err := tx.QueryRow(ctx, `DELETE FROM links WHERE code = $1 RETURNING id`, string(code)).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shortener.ErrNotFound
			}

			return err
		}

		_, err = tx.Exec(ctx, `DELETE FROM click_events WHERE link_id = $1`, id)

		return err
	})
}

// ClaimClick relies on the row lock taken by UPDATE: concurrent claims on the
// same code are serialized and each re-evaluates the WHERE clause against the
// latest click_count.
func (p *PostgresStore) ClaimClick(
	ctx context.Context, code shortener.Code, now time.Time,
) (*shortener.Link, error) {
	query := `
		UPDATE links SET click_count = click_count + 1
		WHERE code = $1
		  AND (expires_at IS NULL OR expires_at > $2)
		  AND (click_limit IS NULL OR click_count < click_limit)
		RETURNING ` + linkColumns

	link, err := scanLink(p.pool.QueryRow(ctx, query, string(code), now))
	if !errors.Is(err, shortener.ErrNotFound) {
		return link, err
	}

	current, err := p.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := current.Check(now); err != nil {
		return nil, err
	}

	return nil, &shortener.GoneError{Code: code, Reason: shortener.GoneLimitExceeded}
}

func (p *PostgresStore) IncrementClicks(ctx context.Context, code shortener.Code) error {
	tag, err := p.pool.Exec(ctx, `UPDATE links SET click_count = click_count + 1 WHERE code = $1`, string(code))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int64, error) {
	var count int64

	err := p.pool.QueryRow(ctx,
		`SELECT count(*) FROM links WHERE owner_id = $1 AND created_at >= $2`,
		ownerID, since,
	).Scan(&count)

	return count, err
}

func (p *PostgresStore) ListByOwner(
	ctx context.Context, ownerID string, page shortener.Page,
) ([]shortener.Link, int64, error) {
	var total int64

	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM links WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count owner links: %w", err)
	}

	query := `
		SELECT ` + linkColumns + `
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.pool.Query(ctx, query, ownerID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (shortener.Link, error) {
		link, err := scanLink(row)
		if err != nil {
			return shortener.Link{}, err
		}

		return *link, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return links, total, nil
}

func scanLink(row pgx.Row) (*shortener.Link, error) {
	var (
		link shortener.Link
		code string
	)

	err := row.Scan(
		&link.ID,
		&code,
		&link.Destination,
		&link.OwnerID,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.ClickLimit,
		&link.ClickCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	link.Code = shortener.Code(code)

	return &link, nil
}

var _ shortener.Repository = (*PostgresStore)(nil)
