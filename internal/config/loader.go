package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSYNC_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// An empty path skips the file and uses defaults plus env overrides only.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSYNC_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYSYNC_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYSYNC_POLYMARKET_CLOB_HOST")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POLYSYNC_DATABASE_DSN")
	setStr(&cfg.Database.Host, "POLYSYNC_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POLYSYNC_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POLYSYNC_DATABASE_NAME")
	setStr(&cfg.Database.User, "POLYSYNC_DATABASE_USER")
	setStr(&cfg.Database.Password, "POLYSYNC_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POLYSYNC_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "POLYSYNC_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "POLYSYNC_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "POLYSYNC_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYSYNC_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYSYNC_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSYNC_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSYNC_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSYNC_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSYNC_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSYNC_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYSYNC_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSYNC_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSYNC_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSYNC_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSYNC_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYSYNC_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSYNC_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setDuration(&cfg.Sync.EventsInterval, "POLYSYNC_SYNC_EVENTS_INTERVAL")
	setDuration(&cfg.Sync.OrderbookInterval, "POLYSYNC_SYNC_ORDERBOOK_INTERVAL")
	setInt(&cfg.Sync.PageSize, "POLYSYNC_SYNC_PAGE_SIZE")
	setInt(&cfg.Sync.MaxPages, "POLYSYNC_SYNC_MAX_PAGES")
	setInt(&cfg.Sync.CategoryTagID, "POLYSYNC_SYNC_CATEGORY_TAG_ID")
	setBool(&cfg.Sync.UpdateOrderbooks, "POLYSYNC_SYNC_UPDATE_ORDERBOOKS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYSYNC_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "POLYSYNC_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "POLYSYNC_ARCHIVE_CRON")

	// ── Report ──
	setInt(&cfg.Report.Depth, "POLYSYNC_REPORT_DEPTH")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYSYNC_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
