package domain

import "context"

// MarketCache provides fast market metadata lookups in front of the store.
type MarketCache interface {
	Set(ctx context.Context, m Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetByToken(ctx context.Context, tokenID string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// BookCache stores the most recent snapshot per token for cheap reads.
type BookCache interface {
	SetLatest(ctx context.Context, snap BookSnapshot) error
	GetLatest(ctx context.Context, tokenID string) (BookSnapshot, error)
}
