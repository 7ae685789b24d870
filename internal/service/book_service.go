package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysync/internal/book"
	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/platform/polymarket"
)

// BookSource is the slice of the CLOB client the ingest path needs.
type BookSource interface {
	GetBook(ctx context.Context, tokenID string, depth int) (polymarket.APIBook, error)
}

// BookService fetches order books, normalizes them exactly once, and appends
// the result to the snapshot log.
type BookService struct {
	source BookSource
	store  domain.BookStore
	cache  domain.BookCache // may be nil
	logger *slog.Logger
}

// NewBookService creates a BookService. cache may be nil when no Redis is
// configured.
func NewBookService(source BookSource, store domain.BookStore, cache domain.BookCache, logger *slog.Logger) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		source: source,
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Ingest fetches the current book for one outcome token, normalizes it, and
// appends the snapshot. A token without a book yields domain.ErrNotFound
// untouched so callers can treat it as absence rather than failure.
func (s *BookService) Ingest(ctx context.Context, marketID, tokenID string) (domain.BookSnapshot, error) {
	apiBook, err := s.source.GetBook(ctx, tokenID, 0)
	if err != nil {
		return domain.BookSnapshot{}, err
	}

	bids, err := book.ParseLevels(apiBook.Bids)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("service: ingest token %s bids: %w", tokenID, err)
	}
	asks, err := book.ParseLevels(apiBook.Asks)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("service: ingest token %s asks: %w", tokenID, err)
	}

	book.SortBids(bids)
	book.SortAsks(asks)

	snap := domain.BookSnapshot{
		MarketID:     marketID,
		TokenID:      tokenID,
		Bids:         bids,
		Asks:         asks,
		Timestamp:    apiBook.VenueTime(),
		TickSize:     float64(apiBook.TickSize),
		MinOrderSize: float64(apiBook.MinOrderSize),
		NegRisk:      apiBook.NegRisk,
		Raw:          apiBook.Raw,
	}

	if err := s.store.Append(ctx, snap); err != nil {
		return domain.BookSnapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, snap); err != nil {
			// Non-fatal: the durable row is already written.
			s.logger.WarnContext(ctx, "book: cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	return snap, nil
}

// Latest reads the freshest stored snapshot(s) for a market, one per token,
// or the single freshest row when tokenID is set.
func (s *BookService) Latest(ctx context.Context, marketID, tokenID string) ([]domain.BookSnapshot, error) {
	return s.store.Latest(ctx, marketID, tokenID)
}

// SnapshotCount returns the size of the snapshot log.
func (s *BookService) SnapshotCount(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
