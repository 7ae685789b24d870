package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

var _ domain.EventStore = (*EventStore)(nil)

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Upsert inserts or replaces a single event wholesale.
func (s *EventStore) Upsert(ctx context.Context, e domain.Event) error {
	const query = `
		INSERT INTO events (
			id, ticker, slug, title, description,
			active, closed, archived, market_ids, raw,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			COALESCE($11, NOW()), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			ticker      = EXCLUDED.ticker,
			slug        = EXCLUDED.slug,
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			active      = EXCLUDED.active,
			closed      = EXCLUDED.closed,
			archived    = EXCLUDED.archived,
			market_ids  = EXCLUDED.market_ids,
			raw         = EXCLUDED.raw,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Ticker, e.Slug, e.Title, e.Description,
		e.Active, e.Closed, e.Archived, jsonStrings(e.MarketIDs), rawOrNil(e.Raw),
		nullableTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %s: %w", e.ID, err)
	}
	return nil
}

const eventCols = `id, ticker, slug, title, description,
	active, closed, archived, market_ids, raw, created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.Ticker, &e.Slug, &e.Title, &e.Description,
		&e.Active, &e.Closed, &e.Archived, &e.MarketIDs, &e.Raw,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

// GetByID retrieves an event by its primary key.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	return e, nil
}

// List returns events, most recently updated first.
func (s *EventStore) List(ctx context.Context, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventCols + ` FROM events ORDER BY updated_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}
