// Package app assembles the collector from configuration. Both binaries
// build their pipeline through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heitormarin83/consultancy-news-agent/internal/catalog"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/adapter/persistence/badger"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/adapter/persistence/postgres"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/adapter/persistence/sqlite"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/db"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/fetcher"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/scraper"
	"github.com/heitormarin83/consultancy-news-agent/internal/repository"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/circuitbreaker"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/classify"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/collect"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/dedup"
)

var ErrUnknownDriver = errors.New("app: unknown store driver")

// StoreOptions selects and locates the dedup store.
type StoreOptions struct {
	// Driver is "sqlite", "postgres" or "badger".
	Driver string
	// Path is the sqlite file or badger directory. For both, empty means
	// in-memory.
	Path        string
	DatabaseURL string
}

// OpenStore opens the dedup store and creates its schema when needed.
func OpenStore(ctx context.Context, opts StoreOptions, logger *slog.Logger) (repository.SentRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Driver {
	case "sqlite", "":
		path := opts.Path
		if path == "" {
			path = ":memory:"
		}
		conn, err := db.OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		if err := db.MigrateUp(ctx, conn, db.SQLite); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		logger.Info("dedup store opened", slog.String("driver", "sqlite"), slog.String("path", path))
		return sqlite.NewSentRepo(conn), nil

	case "postgres":
		conn, err := db.OpenPostgres(ctx, opts.DatabaseURL, db.ConnectionConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		if err := db.MigrateUp(ctx, conn, db.Postgres); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		logger.Info("dedup store opened", slog.String("driver", "postgres"))
		return postgres.NewSentRepo(circuitbreaker.NewDBCircuitBreaker(conn)), nil

	case "badger":
		repo, err := badger.Open(opts.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		logger.Info("dedup store opened", slog.String("driver", "badger"), slog.String("path", opts.Path))
		return repo, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// PipelineOptions configures Build. Zero values take the package defaults.
type PipelineOptions struct {
	Filter       catalog.Filter
	Scoring      classify.ScoringConfig
	Collect      collect.Config
	Scraper      scraper.Config
	ContentFetch fetcher.ContentFetchConfig
}

// DefaultPipelineOptions returns production defaults with content fetching
// off.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Scoring:      classify.DefaultScoringConfig(),
		Collect:      collect.DefaultConfig(),
		Scraper:      scraper.DefaultConfig(),
		ContentFetch: fetcher.DefaultConfig(),
	}
}

// Build wires the catalog, retrieval, classification and the dedup filter
// over store into a collect.Service.
func Build(cat *catalog.Catalog, store repository.SentRepository, opts PipelineOptions, logger *slog.Logger) (*collect.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lex, err := classify.NewLexicon(cat.Keywords(), catalog.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	retrieverOpts := []scraper.RetrieverOption{scraper.WithRetrieverLogger(logger)}
	if opts.ContentFetch.Enabled {
		if err := opts.ContentFetch.Validate(); err != nil {
			return nil, fmt.Errorf("Build: content fetch: %w", err)
		}
		retrieverOpts = append(retrieverOpts,
			scraper.WithEnhancer(fetcher.NewReadabilityEnhancer(opts.ContentFetch, logger)))
		logger.Info("content fetching enabled",
			slog.Int("threshold", opts.ContentFetch.Threshold),
			slog.Int("parallelism", opts.ContentFetch.Parallelism))
	}

	filter, err := dedup.NewFilter(store, dedup.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	svc, err := collect.NewService(collect.Deps{
		Sources:    cat.Sources(opts.Filter),
		Retriever:  scraper.NewRetriever(opts.Scraper, retrieverOpts...),
		Classifier: classify.NewClassifier(lex),
		Scorer:     classify.NewScorer(lex, opts.Scoring),
		Dedup:      filter,
		Logger:     logger,
	}, opts.Collect)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	return svc, nil
}
