package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysync/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketUpsertQuery = `
	INSERT INTO markets (
		id, question, slug, condition_id, description,
		active, closed, archived, restricted, featured, enable_order_book,
		volume, liquidity, volume_24hr, volume_1wk, volume_1mo, volume_1yr,
		tick_size, min_order_size, token_ids, outcomes,
		start_date, end_date, raw, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17,
		$18, $19, $20, $21,
		$22, $23, $24, COALESCE($25, NOW()), NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		question          = EXCLUDED.question,
		slug              = EXCLUDED.slug,
		condition_id      = EXCLUDED.condition_id,
		description       = EXCLUDED.description,
		active            = EXCLUDED.active,
		closed            = EXCLUDED.closed,
		archived          = EXCLUDED.archived,
		restricted        = EXCLUDED.restricted,
		featured          = EXCLUDED.featured,
		enable_order_book = EXCLUDED.enable_order_book,
		volume            = EXCLUDED.volume,
		liquidity         = EXCLUDED.liquidity,
		volume_24hr       = EXCLUDED.volume_24hr,
		volume_1wk        = EXCLUDED.volume_1wk,
		volume_1mo        = EXCLUDED.volume_1mo,
		volume_1yr        = EXCLUDED.volume_1yr,
		tick_size         = EXCLUDED.tick_size,
		min_order_size    = EXCLUDED.min_order_size,
		token_ids         = EXCLUDED.token_ids,
		outcomes          = EXCLUDED.outcomes,
		start_date        = EXCLUDED.start_date,
		end_date          = EXCLUDED.end_date,
		raw               = EXCLUDED.raw,
		updated_at        = NOW()`

func marketUpsertArgs(m domain.Market) []any {
	return []any{
		m.ID, m.Question, m.Slug, m.ConditionID, m.Description,
		m.Active, m.Closed, m.Archived, m.Restricted, m.Featured, m.EnableOrderBook,
		m.Volume, m.Liquidity, m.Volume24h, m.Volume1wk, m.Volume1mo, m.Volume1yr,
		m.TickSize, m.MinOrderSize, jsonStrings(m.TokenIDs), jsonStrings(m.Outcomes),
		m.StartDate, m.EndDate, rawOrNil(m.Raw), nullableTime(m.CreatedAt),
	}
}

// Upsert inserts or replaces a single market wholesale.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	if _, err := s.pool.Exec(ctx, marketUpsertQuery, marketUpsertArgs(m)...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertBatch inserts or replaces multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(marketUpsertQuery, marketUpsertArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d (%s): %w", i, markets[i].ID, err)
		}
	}
	return nil
}

const marketCols = `id, question, slug, condition_id, description,
	active, closed, archived, restricted, featured, enable_order_book,
	volume, liquidity, volume_24hr, volume_1wk, volume_1mo, volume_1yr,
	tick_size, min_order_size, token_ids, outcomes,
	start_date, end_date, raw, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.Question, &m.Slug, &m.ConditionID, &m.Description,
		&m.Active, &m.Closed, &m.Archived, &m.Restricted, &m.Featured, &m.EnableOrderBook,
		&m.Volume, &m.Liquidity, &m.Volume24h, &m.Volume1wk, &m.Volume1mo, &m.Volume1yr,
		&m.TickSize, &m.MinOrderSize, &m.TokenIDs, &m.Outcomes,
		&m.StartDate, &m.EndDate, &m.Raw, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetBySlug retrieves a market by its URL slug.
func (s *MarketStore) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE slug = $1`, slug)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by slug %s: %w", slug, err)
	}
	return m, nil
}

// GetByToken retrieves the market whose token_ids array contains the given
// outcome token id, using the JSONB containment operator.
func (s *MarketStore) GetByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE token_ids ? $1 LIMIT 1`, tokenID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by token %s: %w", tokenID, err)
	}
	return m, nil
}

// Exists reports whether a market row is already present.
func (s *MarketStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: market exists %s: %w", id, err)
	}
	return exists, nil
}

// List returns markets matching the filter, most recently updated first.
func (s *MarketStore) List(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets`
	args := []any{}
	argIdx := 1

	if filter.ActiveOnly {
		query += " WHERE active AND NOT closed"
	}

	query += " ORDER BY updated_at DESC, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Delete removes a market row and reports whether one existed.
func (s *MarketStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM markets WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("postgres: delete market %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// jsonStrings encodes a string slice for a JSONB column, never null.
func jsonStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// rawOrNil maps an empty raw payload to SQL NULL.
func rawOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// nullableTime maps the zero time to SQL NULL so COALESCE defaults apply.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
