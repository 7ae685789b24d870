// Package app provides the top-level application lifecycle for polysync. It
// wires together all dependencies (stores, caches, venue clients, services,
// the updater, and cold-storage archival) and dispatches CLI commands.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysync/internal/config"
	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/report"
	"github.com/alanyoungcy/polysync/internal/updater"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, dispatches the
// requested command, and blocks until the command completes (or, for sync,
// until the context is cancelled).
func (a *App) Run(ctx context.Context, command string, args []string) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(command) {
	case "sync":
		return a.runSync(ctx, deps)
	case "list":
		return a.runList(ctx, deps, args)
	case "get":
		return a.runGet(ctx, deps, args)
	case "book":
		return a.runBook(ctx, deps, args)
	case "search":
		return a.runSearch(ctx, deps, args)
	case "stats":
		return a.runStats(ctx, deps)
	case "delete":
		return a.runDelete(ctx, deps, args)
	case "clear":
		return a.runClear(ctx, deps, args)
	default:
		return fmt.Errorf("app: unknown command %q (expected sync, list, get, book, search, stats, delete, clear)", command)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// runSync starts the updater loops and, when enabled, the archival cron. It
// blocks until the context is cancelled and then shuts the loops down.
func (a *App) runSync(ctx context.Context, deps *Dependencies) error {
	a.logStartupStats(ctx, deps)

	u := updater.New(updater.Config{
		CatalogInterval: a.cfg.Sync.EventsInterval.Duration,
		BookInterval:    a.cfg.Sync.OrderbookInterval.Duration,
		UpdateBooks:     a.cfg.Sync.UpdateOrderbooks,
	}, deps.Catalog, deps.Books, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := u.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return u.Stop()
	})

	if deps.ArchiveRunner != nil {
		g.Go(func() error {
			err := deps.ArchiveRunner.RunCron(gctx, a.cfg.Archive.Cron)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logStartupStats logs the catalog breakdown once at startup so operators can
// see what the store holds before the first sweep.
func (a *App) logStartupStats(ctx context.Context, deps *Dependencies) {
	stats, err := deps.Admin.Stats(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "startup stats unavailable", slog.String("error", err.Error()))
		return
	}
	a.logger.InfoContext(ctx, "catalog at startup",
		slog.Int64("markets", stats.TotalMarkets),
		slog.Int64("active", stats.ActiveMarkets),
		slog.Int64("closed", stats.ClosedMarkets),
		slog.Int64("archived", stats.ArchivedMarkets),
		slog.Int64("snapshots", stats.TotalSnapshots),
	)
}

func (a *App) runList(ctx context.Context, deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	activeOnly := fs.Bool("active", false, "only active, non-closed markets")
	limit := fs.Int("limit", 50, "maximum number of markets to print")
	offset := fs.Int("offset", 0, "number of markets to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	markets, err := deps.Catalog.ListMarkets(ctx, domain.MarketFilter{
		ActiveOnly: *activeOnly,
		Limit:      *limit,
		Offset:     *offset,
	})
	if err != nil {
		return fmt.Errorf("app: list markets: %w", err)
	}
	report.PrintMarkets(os.Stdout, markets)
	return nil
}

func (a *App) runGet(ctx context.Context, deps *Dependencies, args []string) error {
	if len(args) < 1 {
		return errors.New("app: usage: get <market-id>")
	}
	m, err := deps.Catalog.GetMarket(ctx, args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			fmt.Printf("market %s not found\n", args[0])
			return nil
		}
		return fmt.Errorf("app: get market: %w", err)
	}
	report.PrintMarket(os.Stdout, m)
	return nil
}

func (a *App) runBook(ctx context.Context, deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	export := fs.String("export", "", "write the book as JSON to this file instead of printing")
	depth := fs.Int("depth", 0, "levels to display per side (0 = configured default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("app: usage: book [-export file] <market-id|token-id> [token-id]")
	}
	marketID := rest[0]
	tokenID := ""
	if len(rest) > 1 {
		tokenID = rest[1]
	}

	// A bare argument may be an outcome token id rather than a market id.
	if tokenID == "" {
		if _, err := deps.Catalog.GetMarket(ctx, marketID); errors.Is(err, domain.ErrNotFound) {
			m, tokErr := deps.Catalog.GetMarketByToken(ctx, marketID)
			if tokErr != nil {
				fmt.Printf("market %s not found\n", marketID)
				return nil
			}
			tokenID = marketID
			marketID = m.ID
		}
	}

	reporter := deps.Reporter
	if *depth > 0 {
		reporter = report.New(deps.Catalog, deps.Books, *depth)
	}

	if *export != "" {
		f, err := os.Create(*export)
		if err != nil {
			return fmt.Errorf("app: create export file: %w", err)
		}
		defer f.Close()
		if err := reporter.ExportJSON(ctx, f, marketID, tokenID); err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "book exported",
			slog.String("market_id", marketID),
			slog.String("path", *export),
		)
		return nil
	}

	return reporter.PrintBook(ctx, os.Stdout, marketID, tokenID)
}

// runSearch queries the venue's public search directly; nothing is written to
// the local catalog.
func (a *App) runSearch(ctx context.Context, deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum results per type from the venue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("app: usage: search [-limit n] <query>")
	}
	query := strings.Join(rest, " ")

	apiMarkets, err := deps.Gamma.SearchMarkets(ctx, query, *limit)
	if err != nil {
		return fmt.Errorf("app: search: %w", err)
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		markets = append(markets, apiMarkets[i].ToDomainMarket())
	}
	report.PrintMarkets(os.Stdout, markets)
	return nil
}

func (a *App) runStats(ctx context.Context, deps *Dependencies) error {
	stats, err := deps.Catalog.Stats(ctx)
	if err != nil {
		return fmt.Errorf("app: stats: %w", err)
	}
	report.PrintStats(os.Stdout, stats)
	return nil
}

func (a *App) runDelete(ctx context.Context, deps *Dependencies, args []string) error {
	if len(args) < 1 {
		return errors.New("app: usage: delete <market-id>")
	}
	deleted, err := deps.Catalog.DeleteMarket(ctx, args[0])
	if err != nil {
		return fmt.Errorf("app: delete market: %w", err)
	}
	if deleted {
		fmt.Printf("deleted market %s\n", args[0])
	} else {
		fmt.Printf("market %s not found\n", args[0])
	}
	return nil
}

func (a *App) runClear(ctx context.Context, deps *Dependencies, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "required; clear refuses to run without it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*confirm {
		return errors.New("app: clear deletes every market, event, and snapshot; re-run with -confirm")
	}
	if err := deps.Catalog.Clear(ctx); err != nil {
		return fmt.Errorf("app: clear: %w", err)
	}
	fmt.Println("catalog cleared")
	return nil
}
