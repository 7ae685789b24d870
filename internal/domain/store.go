package domain

import (
	"context"
	"time"
)

// MarketFilter narrows List queries over markets.
type MarketFilter struct {
	// ActiveOnly restricts the result to active, non-closed markets.
	ActiveOnly bool
	Limit      int
	Offset     int
}

// MarketStore persists market metadata keyed by venue market id.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	// GetByToken resolves the market owning the given outcome token id.
	GetByToken(ctx context.Context, tokenID string) (Market, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter MarketFilter) ([]Market, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// EventStore persists event metadata keyed by venue event id.
type EventStore interface {
	Upsert(ctx context.Context, e Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, limit int) ([]Event, error)
}

// BookStore persists order-book snapshots as an append-only log.
type BookStore interface {
	// Append inserts one snapshot; it either fully succeeds or leaves the
	// store untouched.
	Append(ctx context.Context, snap BookSnapshot) error

	// Latest returns the freshest snapshot per token for the market. With a
	// non-empty tokenID it returns at most that token's single freshest row.
	// Freshness is (venue timestamp, falling back to insertion time), ties
	// broken by the storage sequence number.
	Latest(ctx context.Context, marketID, tokenID string) ([]BookSnapshot, error)

	// ListBefore returns up to limit snapshots created before cutoff, oldest
	// first. Used by cold-storage archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]BookSnapshot, error)

	// DeleteByID removes exactly the given snapshot rows and reports how
	// many went away. Archival deletes by id so a batch boundary can never
	// touch rows it did not upload.
	DeleteByID(ctx context.Context, ids []int64) (int64, error)

	Count(ctx context.Context) (int64, error)
}

// Maintenance groups the destructive and aggregate operations kept apart
// from the per-entity stores.
type Maintenance interface {
	// ClearAll purges markets, events, and snapshots in one transaction.
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (CatalogStats, error)
}
