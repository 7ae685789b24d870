package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/polysync/internal/blob/s3"
	"github.com/alanyoungcy/polysync/internal/cache/redis"
	"github.com/alanyoungcy/polysync/internal/config"
	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/alanyoungcy/polysync/internal/platform/polymarket"
	"github.com/alanyoungcy/polysync/internal/report"
	"github.com/alanyoungcy/polysync/internal/service"
	"github.com/alanyoungcy/polysync/internal/store/postgres"
	"github.com/alanyoungcy/polysync/internal/updater"
)

// Dependencies bundles every component the commands need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	EventStore  domain.EventStore
	BookStore   domain.BookStore
	Admin       domain.Maintenance

	// Caches (nil when Redis is disabled)
	MarketCache domain.MarketCache
	BookCache   domain.BookCache

	// Venue clients
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient

	// Services
	Catalog *service.CatalogService
	Books   *service.BookService

	// Reporting
	Reporter *report.Reporter

	// Cold storage (nil unless archival is enabled)
	Archiver      domain.SnapshotArchiver
	ArchiveRunner *updater.ArchiveRunner
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)
	deps.BookStore = postgres.NewBookStore(pool)
	deps.Admin = postgres.NewAdminStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.BookCache = redis.NewBookCache(redisClient)
	}

	// --- Venue clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost)

	// --- Services ---
	deps.Catalog = service.NewCatalogService(
		deps.Gamma,
		deps.MarketStore,
		deps.EventStore,
		deps.Admin,
		deps.MarketCache,
		service.CatalogOptions{
			PageSize: cfg.Sync.PageSize,
			MaxPages: cfg.Sync.MaxPages,
			TagID:    cfg.Sync.CategoryTagID,
		},
		logger,
	)
	deps.Books = service.NewBookService(deps.Clob, deps.BookStore, deps.BookCache, logger)

	// --- Reporting ---
	deps.Reporter = report.New(deps.Catalog, deps.Books, cfg.Report.Depth)

	// --- S3 cold storage (only when archival is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		bookStore, ok := deps.BookStore.(*postgres.BookStore)
		if !ok {
			cleanup()
			return nil, nil, fmt.Errorf("wire: archival requires the postgres book store")
		}
		deps.Archiver = s3blob.NewSnapshotArchiver(s3blob.NewWriter(s3Client), bookStore)
		deps.ArchiveRunner = updater.NewArchiveRunner(deps.Archiver, cfg.Archive.RetentionDays, logger)
	}

	return deps, cleanup, nil
}
