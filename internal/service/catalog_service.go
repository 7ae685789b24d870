// Package service holds the application logic between the venue clients and
// the stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/platform/polymarket"
)

// CatalogSource is the slice of the Gamma client the catalog sync needs.
type CatalogSource interface {
	ListMarkets(ctx context.Context, q polymarket.ListQuery) ([]polymarket.APIMarket, error)
	ListEvents(ctx context.Context, q polymarket.ListQuery) ([]polymarket.APIEvent, error)
}

// SyncResult summarizes one catalog sweep.
type SyncResult struct {
	Events  int
	Fetched int
	New     int
	Known   int
	Failed  int

	// Markets holds every market successfully upserted in this sweep.
	Markets []domain.Market
}

// CatalogOptions tune the pagination of a catalog sweep.
type CatalogOptions struct {
	PageSize int // page size per request, capped at the venue max
	MaxPages int // 0 means no cap
	TagID    int // optional category tag filter
}

// CatalogService discovers markets and events through the Gamma API and keeps
// the persistent catalog in sync with them.
type CatalogService struct {
	source  CatalogSource
	markets domain.MarketStore
	events  domain.EventStore
	admin   domain.Maintenance
	cache   domain.MarketCache // may be nil
	opts    CatalogOptions
	logger  *slog.Logger
}

// NewCatalogService creates a CatalogService. cache may be nil when no Redis
// is configured.
func NewCatalogService(
	source CatalogSource,
	markets domain.MarketStore,
	events domain.EventStore,
	admin domain.Maintenance,
	cache domain.MarketCache,
	opts CatalogOptions,
	logger *slog.Logger,
) *CatalogService {
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{
		source:  source,
		markets: markets,
		events:  events,
		admin:   admin,
		cache:   cache,
		opts:    opts,
		logger:  logger,
	}
}

// SyncCatalog walks the event pages, upserts every event and its member
// markets, and returns the sweep summary. Pagination stops at the first empty
// page; an error mid-pagination keeps what was already written. A failure on
// one record is counted and skipped, never fatal to the sweep.
func (s *CatalogService) SyncCatalog(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	closed := false

	for page := 0; s.opts.MaxPages <= 0 || page < s.opts.MaxPages; page++ {
		q := polymarket.ListQuery{
			Closed:    &closed,
			Limit:     s.opts.PageSize,
			Offset:    page * s.opts.PageSize,
			Ascending: true,
			TagID:     s.opts.TagID,
		}

		events, err := s.source.ListEvents(ctx, q)
		if err != nil {
			if res.Events > 0 {
				// Mid-pagination failure: keep the pages already synced and
				// let the next sweep fill in the rest.
				s.logger.WarnContext(ctx, "catalog: pagination cut short",
					slog.Int("page", page),
					slog.String("error", err.Error()),
				)
				break
			}
			return res, fmt.Errorf("service: sync catalog: %w", err)
		}
		if len(events) == 0 {
			break
		}

		for i := range events {
			s.syncEvent(ctx, &events[i], &res)
		}

		if len(events) < s.opts.PageSize {
			break
		}
	}

	s.logger.InfoContext(ctx, "catalog: sweep complete",
		slog.Int("events", res.Events),
		slog.Int("markets", res.Fetched),
		slog.Int("new", res.New),
		slog.Int("known", res.Known),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// syncEvent upserts one event and all of its member markets.
func (s *CatalogService) syncEvent(ctx context.Context, ev *polymarket.APIEvent, res *SyncResult) {
	if err := s.events.Upsert(ctx, ev.ToDomainEvent()); err != nil {
		s.logger.WarnContext(ctx, "catalog: event upsert failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
		res.Failed++
	} else {
		res.Events++
	}

	for i := range ev.Markets {
		m := ev.Markets[i].ToDomainMarket()
		if m.ID == "" {
			continue
		}
		res.Fetched++

		// The exists check runs before the write so the new/known split
		// reflects the catalog as it was when the sweep started. It feeds
		// counters only; a failed check never blocks the upsert.
		known, existsErr := s.markets.Exists(ctx, m.ID)
		if existsErr != nil {
			s.logger.WarnContext(ctx, "catalog: exists check failed",
				slog.String("market_id", m.ID),
				slog.String("error", existsErr.Error()),
			)
		}

		if err := s.markets.Upsert(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "catalog: market upsert failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			res.Failed++
			continue
		}

		switch {
		case existsErr != nil:
			// Written, but unclassifiable.
			res.Failed++
		case known:
			res.Known++
		default:
			res.New++
		}
		res.Markets = append(res.Markets, m)

		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, m.ID); err != nil {
				// Non-fatal: the cache entry expires on its own.
				s.logger.WarnContext(ctx, "catalog: cache invalidate failed",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// GetMarket returns one market, cache-first when a cache is configured.
func (s *CatalogService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "catalog: cache read failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "catalog: cache fill failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// GetMarketByToken resolves the market owning an outcome token, cache-first
// when a cache is configured. Lets the CLI take a token id straight from a
// stored book.
func (s *CatalogService) GetMarketByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.GetByToken(ctx, tokenID); err == nil {
			return m, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "catalog: cache token read failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	m, err := s.markets.GetByToken(ctx, tokenID)
	if err != nil {
		return domain.Market{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "catalog: cache fill failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// ListMarkets returns markets matching the filter from the store.
func (s *CatalogService) ListMarkets(ctx context.Context, filter domain.MarketFilter) ([]domain.Market, error) {
	return s.markets.List(ctx, filter)
}

// DeleteMarket removes one market and reports whether it existed.
func (s *CatalogService) DeleteMarket(ctx context.Context, id string) (bool, error) {
	existed, err := s.markets.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if existed && s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "catalog: cache invalidate failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return existed, nil
}

// Stats returns aggregate counts over the catalog.
func (s *CatalogService) Stats(ctx context.Context) (domain.CatalogStats, error) {
	return s.admin.Stats(ctx)
}

// Clear purges every market, event, and snapshot.
func (s *CatalogService) Clear(ctx context.Context) error {
	if err := s.admin.ClearAll(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "catalog: cleared all data")
	return nil
}
