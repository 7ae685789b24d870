package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// BookStore implements domain.BookStore using PostgreSQL. Snapshots are
// append-only; nothing in here issues an UPDATE.
type BookStore struct {
	pool *pgxpool.Pool
}

var _ domain.BookStore = (*BookStore)(nil)

// NewBookStore creates a new BookStore backed by the given connection pool.
func NewBookStore(pool *pgxpool.Pool) *BookStore {
	return &BookStore{pool: pool}
}

// Append inserts one snapshot row.
func (s *BookStore) Append(ctx context.Context, snap domain.BookSnapshot) error {
	const query = `
		INSERT INTO orderbook_snapshots (
			market_id, token_id, bids, asks, venue_ts,
			tick_size, min_order_size, neg_risk, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		snap.MarketID, snap.TokenID,
		jsonLevels(snap.Bids), jsonLevels(snap.Asks), snap.Timestamp,
		snap.TickSize, snap.MinOrderSize, snap.NegRisk, rawOrNil(snap.Raw),
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot market=%s token=%s: %w",
			snap.MarketID, snap.TokenID, err)
	}
	return nil
}

const snapshotCols = `id, market_id, token_id, bids, asks, venue_ts,
	tick_size, min_order_size, neg_risk, raw, created_at`

func scanSnapshot(row pgx.Row) (domain.BookSnapshot, error) {
	var snap domain.BookSnapshot
	err := row.Scan(
		&snap.ID, &snap.MarketID, &snap.TokenID, &snap.Bids, &snap.Asks,
		&snap.Timestamp, &snap.TickSize, &snap.MinOrderSize, &snap.NegRisk,
		&snap.Raw, &snap.CreatedAt,
	)
	if err != nil {
		return domain.BookSnapshot{}, err
	}
	return snap, nil
}

// Latest returns the freshest snapshot per token for the market, or the one
// freshest row when tokenID is given. Freshness is the venue timestamp when
// present, else insertion time, ties broken by row id.
func (s *BookStore) Latest(ctx context.Context, marketID, tokenID string) ([]domain.BookSnapshot, error) {
	query := `
		SELECT DISTINCT ON (token_id) ` + snapshotCols + `
		FROM orderbook_snapshots
		WHERE market_id = $1`
	args := []any{marketID}

	if tokenID != "" {
		query += " AND token_id = $2"
		args = append(args, tokenID)
	}
	query += " ORDER BY token_id, COALESCE(venue_ts, created_at) DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest snapshots market=%s: %w", marketID, err)
	}
	defer rows.Close()

	var snaps []domain.BookSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: latest snapshots rows: %w", err)
	}
	return snaps, nil
}

// ListBefore returns up to limit snapshots created before cutoff, oldest first.
func (s *BookStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.BookSnapshot, error) {
	query := `
		SELECT ` + snapshotCols + `
		FROM orderbook_snapshots
		WHERE created_at < $1
		ORDER BY created_at, id`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var snaps []domain.BookSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list snapshots rows: %w", err)
	}
	return snaps, nil
}

// DeleteByID removes exactly the given snapshot rows.
func (s *BookStore) DeleteByID(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM orderbook_snapshots WHERE id = ANY($1)", ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d snapshots: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of stored snapshots.
func (s *BookStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orderbook_snapshots").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return count, nil
}

// jsonLevels encodes price levels for a JSONB column, never null.
func jsonLevels(levels []domain.PriceLevel) []domain.PriceLevel {
	if levels == nil {
		return []domain.PriceLevel{}
	}
	return levels
}
