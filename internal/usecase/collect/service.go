// Package collect runs the collector pipeline: parallel retrieval over the
// catalog, then classification, scoring, freshness and threshold filters,
// deduplication, diversification and recording of what was delivered.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/logging"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/metrics"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/tracing"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/classify"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/dedup"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/selection"
)

// Retriever fetches the raw candidates of one source.
type Retriever interface {
	Fetch(ctx context.Context, src entity.Source) ([]entity.Article, error)
}

// Deps are the collaborators of a Service. Logger and Now are optional.
type Deps struct {
	Sources    []entity.Source
	Retriever  Retriever
	Classifier *classify.Classifier
	Scorer     *classify.Scorer
	Dedup      *dedup.Filter
	Logger     *slog.Logger
	Now        func() time.Time
}

// Config holds the tunables of a run.
type Config struct {
	Workers         int
	SourceTimeout   time.Duration
	RunTimeout      time.Duration
	FreshnessWindow time.Duration
	Limits          selection.Limits

	// FeedSummaryLength and DocumentSummaryLength cap emitted summaries, in
	// runes, per fetch mode.
	FeedSummaryLength     int
	DocumentSummaryLength int

	// DryRun skips recording emitted items in the dedup store.
	DryRun bool
}

func DefaultConfig() Config {
	return Config{
		Workers:               6,
		SourceTimeout:         25 * time.Second,
		RunTimeout:            5 * time.Minute,
		FreshnessWindow:       14 * 24 * time.Hour,
		Limits:                selection.DefaultLimits(),
		FeedSummaryLength:     400,
		DocumentSummaryLength: 350,
	}
}

// Service is one configured pipeline. It holds no per-run state, so Run may
// be called repeatedly.
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Retriever == nil:
		return nil, fmt.Errorf("%w: retriever", ErrMissingDependency)
	case deps.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier", ErrMissingDependency)
	case deps.Scorer == nil:
		return nil, fmt.Errorf("%w: scorer", ErrMissingDependency)
	case deps.Dedup == nil:
		return nil, fmt.Errorf("%w: dedup filter", ErrMissingDependency)
	}
	if len(deps.Sources) == 0 {
		return nil, ErrNoSources
	}
	if cfg.Workers <= 0 {
		return nil, ErrInvalidConcurrency
	}

	s := &Service{deps: deps, cfg: cfg, logger: deps.Logger, now: deps.Now}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Sources returns the catalog entries the service runs over.
func (s *Service) Sources() []entity.Source {
	out := make([]entity.Source, len(s.deps.Sources))
	copy(out, s.deps.Sources)
	return out
}

// Run executes the pipeline once. Source and item failures are absorbed
// into Result.Stats; the error return is reserved for setup failures.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	res := &Result{RunID: runID, StartedAt: s.now(), DryRun: s.cfg.DryRun}

	ctx = logging.WithRunID(ctx, runID)
	logger := s.logger.With(slog.String("run_id", runID))
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.StartSpan(ctx, "collect.Run",
		attribute.String("run.id", runID),
		attribute.Int("run.sources", len(s.deps.Sources)),
		attribute.Bool("run.dry_run", s.cfg.DryRun))

	logger.Info("collector run started",
		slog.Int("sources", len(s.deps.Sources)),
		slog.Int("workers", s.cfg.Workers))

	raw, err := s.retrieve(ctx, res)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}

	res.Articles = s.process(ctx, raw, &res.Stats)
	res.Stats.Emitted = len(res.Articles)
	res.Stats.Duration = time.Since(started)

	status := res.Status()
	metrics.RecordRun(string(status), res.Stats.Duration)
	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Int("run.emitted", res.Stats.Emitted))
	tracing.EndSpan(span, nil)

	logger.Info("collector run finished",
		slog.String("status", string(status)),
		slog.Int("sources_attempted", res.Stats.SourcesAttempted),
		slog.Int("sources_failed", res.Stats.SourcesFailed),
		slog.Int("fetched", res.Stats.Fetched),
		slog.Int("off_topic", res.Stats.OffTopic),
		slog.Int("stale", res.Stats.Stale),
		slog.Int("below_threshold", res.Stats.BelowThreshold),
		slog.Int("duplicates", res.Stats.Duplicates),
		slog.Int("already_sent", res.Stats.AlreadySent),
		slog.Int("emitted", res.Stats.Emitted),
		slog.Duration("duration", res.Stats.Duration))
	return res, nil
}
