package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// AdminStore implements domain.Maintenance: destructive and aggregate
// operations over the whole catalog.
type AdminStore struct {
	pool *pgxpool.Pool
}

var _ domain.Maintenance = (*AdminStore)(nil)

// NewAdminStore creates a new AdminStore backed by the given connection pool.
func NewAdminStore(pool *pgxpool.Pool) *AdminStore {
	return &AdminStore{pool: pool}
}

// ClearAll purges markets, events, and snapshots in one transaction.
func (s *AdminStore) ClearAll(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin clear: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"orderbook_snapshots", "events", "markets"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("postgres: clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit clear: %w", err)
	}
	return nil
}

// Stats returns aggregate counts over the catalog.
func (s *AdminStore) Stats(ctx context.Context) (domain.CatalogStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM markets),
			(SELECT COUNT(*) FROM markets WHERE active AND NOT closed),
			(SELECT COUNT(*) FROM markets WHERE closed),
			(SELECT COUNT(*) FROM markets WHERE archived),
			(SELECT COUNT(*) FROM orderbook_snapshots),
			(SELECT COALESCE(SUM(volume), 0) FROM markets)`

	var stats domain.CatalogStats
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalMarkets, &stats.ActiveMarkets, &stats.ClosedMarkets,
		&stats.ArchivedMarkets, &stats.TotalSnapshots, &stats.TotalVolume,
	)
	if err != nil {
		return domain.CatalogStats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	return stats, nil
}
