// Package updater runs the two background synchronization loops: catalog
// discovery and order-book collection.
package updater

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/service"
)

// State is the lifecycle phase of the Updater.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Catalog is the slice of the catalog service the updater drives.
type Catalog interface {
	SyncCatalog(ctx context.Context) (service.SyncResult, error)
}

// BookIngester fetches and persists one order book per call.
type BookIngester interface {
	Ingest(ctx context.Context, marketID, tokenID string) (domain.BookSnapshot, error)
}

// Config holds the updater loop intervals.
type Config struct {
	CatalogInterval time.Duration // catalog sweep cadence (default 60s)
	BookInterval    time.Duration // order-book sweep cadence (default 30s)
	UpdateBooks     bool          // run the order-book loop at all
	StopTimeout     time.Duration // bounded wait on Stop (default 5s)
}

// DefaultConfig returns the intervals used when none are configured.
func DefaultConfig() Config {
	return Config{
		CatalogInterval: 60 * time.Second,
		BookInterval:    30 * time.Second,
		UpdateBooks:     true,
		StopTimeout:     5 * time.Second,
	}
}

// Updater owns the catalog and order-book loops. The catalog loop replaces
// the tracked market list each sweep; the book loop reads that list and
// fetches one book per outcome token.
type Updater struct {
	cfg     Config
	catalog Catalog
	books   BookIngester
	logger  *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	tracked []domain.Market

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Updater. Zero config fields fall back to defaults.
func New(cfg Config, catalog Catalog, books BookIngester, logger *slog.Logger) *Updater {
	def := DefaultConfig()
	if cfg.CatalogInterval <= 0 {
		cfg.CatalogInterval = def.CatalogInterval
	}
	if cfg.BookInterval <= 0 {
		cfg.BookInterval = def.BookInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		cfg:     cfg,
		catalog: catalog,
		books:   books,
		logger:  logger,
	}
}

// State returns the current lifecycle phase.
func (u *Updater) State() State {
	return State(u.state.Load())
}

// Start launches both loops. Calling Start while the updater is already
// running is a logged no-op.
func (u *Updater) Start(ctx context.Context) error {
	if !u.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		u.logger.Warn("updater already running", slog.String("state", u.State().String()))
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel

	u.wg.Add(1)
	go u.catalogLoop(loopCtx)

	if u.cfg.UpdateBooks && u.books != nil {
		u.wg.Add(1)
		go u.bookLoop(loopCtx)
	}

	u.state.Store(int32(Running))
	u.logger.Info("updater started",
		slog.Duration("catalog_interval", u.cfg.CatalogInterval),
		slog.Duration("book_interval", u.cfg.BookInterval),
		slog.Bool("update_books", u.cfg.UpdateBooks),
	)
	return nil
}

// Stop signals both loops and waits up to StopTimeout for them to exit.
// Loops that do not exit in time are abandoned; in-flight requests finish or
// fail against the cancelled context on their own.
func (u *Updater) Stop() error {
	if !u.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return nil
	}
	u.cancel()

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		u.logger.Info("updater stopped")
	case <-time.After(u.cfg.StopTimeout):
		u.logger.Warn("updater loops did not exit in time, abandoning",
			slog.Duration("timeout", u.cfg.StopTimeout),
		)
	}

	u.state.Store(int32(Stopped))
	return nil
}

// TrackedMarkets returns a copy of the current tracked market list.
func (u *Updater) TrackedMarkets() []domain.Market {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]domain.Market, len(u.tracked))
	copy(out, u.tracked)
	return out
}

// setTracked replaces the tracked list with the orderbook-eligible subset of
// the sweep's markets.
func (u *Updater) setTracked(markets []domain.Market) {
	eligible := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if m.EnableOrderBook && m.Active && !m.Closed && !m.Archived {
			eligible = append(eligible, m)
		}
	}

	u.mu.Lock()
	u.tracked = eligible
	u.mu.Unlock()
}

// catalogLoop sweeps the catalog immediately and then on every tick.
func (u *Updater) catalogLoop(ctx context.Context) {
	defer u.wg.Done()

	u.runCatalogSweep(ctx)

	ticker := time.NewTicker(u.cfg.CatalogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("catalog loop stopped")
			return
		case <-ticker.C:
			u.runCatalogSweep(ctx)
		}
	}
}

func (u *Updater) runCatalogSweep(ctx context.Context) {
	runID := uuid.NewString()
	start := time.Now()

	res, err := u.catalog.SyncCatalog(ctx)
	if err != nil {
		// The ticker provides the full-interval backoff; nothing to do here
		// beyond logging.
		u.logger.Error("catalog sweep failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return
	}

	u.setTracked(res.Markets)

	u.mu.Lock()
	trackedCount := len(u.tracked)
	u.mu.Unlock()

	u.logger.Info("catalog sweep done",
		slog.String("run_id", runID),
		slog.Int("events", res.Events),
		slog.Int("markets", res.Fetched),
		slog.Int("new", res.New),
		slog.Int("known", res.Known),
		slog.Int("failed", res.Failed),
		slog.Int("tracked", trackedCount),
		slog.Duration("duration", time.Since(start)),
	)
}

// bookLoop sweeps order books immediately and then on every tick.
func (u *Updater) bookLoop(ctx context.Context) {
	defer u.wg.Done()

	u.runBookSweep(ctx)

	ticker := time.NewTicker(u.cfg.BookInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("order-book loop stopped")
			return
		case <-ticker.C:
			u.runBookSweep(ctx)
		}
	}
}

// runBookSweep fetches the current book for every token of every tracked
// market, sequentially. Individual failures are counted and skipped.
func (u *Updater) runBookSweep(ctx context.Context) {
	markets := u.TrackedMarkets()
	if len(markets) == 0 {
		u.logger.Debug("no tracked markets, skipping book sweep")
		return
	}

	runID := uuid.NewString()
	start := time.Now()
	var successful, failed, missing int

	for i, m := range markets {
		if ctx.Err() != nil {
			return
		}
		if len(m.TokenIDs) == 0 {
			// Token list absent or unparseable; the market simply has no
			// books to fetch this sweep.
			continue
		}

		ok := true
		for _, tokenID := range m.TokenIDs {
			if tokenID == "" {
				continue
			}
			if _, err := u.books.Ingest(ctx, m.ID, tokenID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					missing++
					continue
				}
				if ctx.Err() != nil {
					return
				}
				u.logger.Warn("book fetch failed",
					slog.String("run_id", runID),
					slog.String("market_id", m.ID),
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
				ok = false
			}
		}
		if ok {
			successful++
		} else {
			failed++
		}

		if (i+1)%50 == 0 {
			u.logger.Info("book sweep progress",
				slog.String("run_id", runID),
				slog.Int("done", i+1),
				slog.Int("total", len(markets)),
			)
		}
	}

	u.logger.Info("book sweep done",
		slog.String("run_id", runID),
		slog.Int("markets", len(markets)),
		slog.Int("successful", successful),
		slog.Int("failed", failed),
		slog.Int("missing", missing),
		slog.Duration("duration", time.Since(start)),
	)
}
