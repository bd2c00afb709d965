package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/heitormarin83/consultancy-news-agent/internal/pkg/config"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/classify"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/collect"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/selection"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Config is the worker process configuration, read from the environment.
type Config struct {
	// CronSchedule is a five-field cron expression evaluated in Timezone.
	CronSchedule string
	Timezone     string

	RunTimeout      time.Duration
	SourceTimeout   time.Duration
	PoolSize        int
	FreshnessWindow time.Duration

	FeedMinScore     int
	DocumentMinScore int

	MaxTotal      int
	MaxPerSource  int
	MaxPerCountry int

	// CatalogPath is a YAML or TOML catalog. Empty uses the built-in one.
	CatalogPath string

	StoreDriver string
	// StorePath is the sqlite file or the badger directory.
	StorePath   string
	DatabaseURL string

	ContentFetchEnabled bool

	HealthPort int
}

func DefaultConfig() Config {
	pipeline := collect.DefaultConfig()
	scoring := classify.DefaultScoringConfig()
	return Config{
		CronSchedule:        "0 8 * * *",
		Timezone:            "America/Sao_Paulo",
		RunTimeout:          pipeline.RunTimeout,
		SourceTimeout:       pipeline.SourceTimeout,
		PoolSize:            pipeline.Workers,
		FreshnessWindow:     pipeline.FreshnessWindow,
		FeedMinScore:        scoring.FeedMinScore,
		DocumentMinScore:    scoring.DocumentMinScore,
		MaxTotal:            pipeline.Limits.MaxTotal,
		MaxPerSource:        pipeline.Limits.MaxPerSource,
		MaxPerCountry:       pipeline.Limits.MaxPerCountry,
		StoreDriver:         StoreSQLite,
		StorePath:           "consulting_news_history.db",
		ContentFetchEnabled: false,
		HealthPort:          9091,
	}
}

func validateScore(v int) error {
	return config.ValidateIntRange(v, classify.MinScore, classify.MaxScore)
}

func validateCap(v int) error {
	return config.ValidateIntRange(v, 1, 1000)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	check("cron schedule", config.ValidateCronSchedule(c.CronSchedule))
	check("timezone", config.ValidateTimezone(c.Timezone))
	check("run timeout", config.ValidateDuration(c.RunTimeout, 10*time.Second, 2*time.Hour))
	check("source timeout", config.ValidateDuration(c.SourceTimeout, time.Second, 10*time.Minute))
	check("pool size", config.ValidateIntRange(c.PoolSize, 1, 64))
	check("freshness window", config.ValidatePositiveDuration(c.FreshnessWindow))
	check("feed min score", validateScore(c.FeedMinScore))
	check("document min score", validateScore(c.DocumentMinScore))
	check("max total", validateCap(c.MaxTotal))
	check("max per source", validateCap(c.MaxPerSource))
	check("max per country", validateCap(c.MaxPerCountry))
	check("store driver", config.OneOf(StoreSQLite, StorePostgres, StoreBadger)(c.StoreDriver))
	check("health port", config.ValidateIntRange(c.HealthPort, 1024, 65535))
	if c.StoreDriver == StorePostgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url: required when store driver is postgres"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Location loads Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Pipeline converts c into the collector's run configuration.
func (c *Config) Pipeline() collect.Config {
	p := collect.DefaultConfig()
	p.Workers = c.PoolSize
	p.SourceTimeout = c.SourceTimeout
	p.RunTimeout = c.RunTimeout
	p.FreshnessWindow = c.FreshnessWindow
	p.Limits = selection.Limits{
		MaxTotal:      c.MaxTotal,
		MaxPerSource:  c.MaxPerSource,
		MaxPerCountry: c.MaxPerCountry,
	}
	return p
}

// Scoring returns the default weights with the configured thresholds.
func (c *Config) Scoring() classify.ScoringConfig {
	s := classify.DefaultScoringConfig()
	s.FeedMinScore = c.FeedMinScore
	s.DocumentMinScore = c.DocumentMinScore
	return s
}

// LoadConfigFromEnv reads the worker configuration. It fails open: an
// invalid value is logged, counted in metrics and replaced by its default,
// so the worker always starts. metrics may be nil.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*Config, error) {
	cfg := DefaultConfig()

	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	fb := config.NewFallbacks(logger, cm)

	cfg.CronSchedule = config.Resolve(fb, "cron_schedule",
		config.LoadString("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule))
	cfg.Timezone = config.Resolve(fb, "timezone",
		config.LoadString("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))
	cfg.RunTimeout = config.Resolve(fb, "run_timeout",
		config.LoadDuration("RUN_TIMEOUT", cfg.RunTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 10*time.Second, 2*time.Hour)
		}))
	cfg.SourceTimeout = config.Resolve(fb, "source_timeout",
		config.LoadDuration("SOURCE_TIMEOUT", cfg.SourceTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, time.Second, 10*time.Minute)
		}))
	cfg.PoolSize = config.Resolve(fb, "pool_size",
		config.LoadInt("WORKER_POOL_SIZE", cfg.PoolSize, func(v int) error {
			return config.ValidateIntRange(v, 1, 64)
		}))
	cfg.FreshnessWindow = config.Resolve(fb, "freshness_window",
		config.LoadDuration("FRESHNESS_WINDOW", cfg.FreshnessWindow, config.ValidatePositiveDuration))
	cfg.FeedMinScore = config.Resolve(fb, "feed_min_score",
		config.LoadInt("FEED_MIN_SCORE", cfg.FeedMinScore, validateScore))
	cfg.DocumentMinScore = config.Resolve(fb, "document_min_score",
		config.LoadInt("DOCUMENT_MIN_SCORE", cfg.DocumentMinScore, validateScore))
	cfg.MaxTotal = config.Resolve(fb, "max_total",
		config.LoadInt("MAX_TOTAL", cfg.MaxTotal, validateCap))
	cfg.MaxPerSource = config.Resolve(fb, "max_per_source",
		config.LoadInt("MAX_PER_SOURCE", cfg.MaxPerSource, validateCap))
	cfg.MaxPerCountry = config.Resolve(fb, "max_per_country",
		config.LoadInt("MAX_PER_COUNTRY", cfg.MaxPerCountry, validateCap))
	cfg.CatalogPath = config.Resolve(fb, "catalog_path",
		config.LoadString("CATALOG_PATH", cfg.CatalogPath, nil))
	cfg.StoreDriver = config.Resolve(fb, "store_driver",
		config.LoadString("STORE_DRIVER", cfg.StoreDriver, config.OneOf(StoreSQLite, StorePostgres, StoreBadger)))
	cfg.StorePath = config.Resolve(fb, "store_path",
		config.LoadString("STORE_PATH", cfg.StorePath, nil))
	cfg.DatabaseURL = config.Resolve(fb, "database_url",
		config.LoadString("DATABASE_URL", cfg.DatabaseURL, nil))
	cfg.ContentFetchEnabled = config.Resolve(fb, "content_fetch_enabled",
		config.LoadBool("CONTENT_FETCH_ENABLED", cfg.ContentFetchEnabled))
	cfg.HealthPort = config.Resolve(fb, "health_port",
		config.LoadInt("HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		}))

	fb.Finish()

	// The only error that cannot fall back: postgres without a DSN.
	if cfg.StoreDriver == StorePostgres && cfg.DatabaseURL == "" {
		return nil, errors.New("LoadConfigFromEnv: DATABASE_URL is required when STORE_DRIVER=postgres")
	}
	return &cfg, nil
}
