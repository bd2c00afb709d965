package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/metrics"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
	"github.com/heitormarin83/consultancy-news-agent/pkg/security/ssrf"
)

// ErrUnknownMode is returned for a source whose mode has no strategy.
var ErrUnknownMode = errors.New("scraper: unknown fetch mode")

// Fetcher is one retrieval strategy.
type Fetcher interface {
	Fetch(ctx context.Context, src entity.Source) ([]entity.Article, error)
}

// Enhancer may replace short summaries with text taken from the article
// page. It must never drop items.
type Enhancer interface {
	Enhance(ctx context.Context, articles []entity.Article) []entity.Article
}

// Retriever routes a source to the strategy matching its mode.
type Retriever struct {
	strategies map[entity.FetchMode]Fetcher
	enhancer   Enhancer
	logger     *slog.Logger
}

type RetrieverOption func(*Retriever)

func WithEnhancer(e Enhancer) RetrieverOption {
	return func(r *Retriever) { r.enhancer = e }
}

func WithRetrieverLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithStrategy overrides the strategy for one mode.
func WithStrategy(mode entity.FetchMode, f Fetcher) RetrieverOption {
	return func(r *Retriever) { r.strategies[mode] = f }
}

// NewRetriever wires the feed and document strategies around one shared
// HTTP client.
func NewRetriever(cfg Config, opts ...RetrieverOption) *Retriever {
	cfg = cfg.withDefaults()
	client := NewHTTPClient(ssrf.Guard{AllowPrivate: cfg.AllowPrivate})
	r := &Retriever{
		strategies: map[entity.FetchMode]Fetcher{
			entity.ModeFeed:     NewFeedFetcher(client, cfg),
			entity.ModeDocument: NewDocumentFetcher(client, cfg),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch retrieves src. Any error means the whole source produced nothing.
func (r *Retriever) Fetch(ctx context.Context, src entity.Source) ([]entity.Article, error) {
	strategy, ok := r.strategies[src.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, src.Mode)
	}

	start := time.Now()
	articles, err := strategy.Fetch(ctx, src)
	if err != nil {
		metrics.RecordSourceFetchError(src.ID, ErrorType(err))
		return nil, fmt.Errorf("fetch %s: %w", src.ID, err)
	}
	metrics.RecordSourceFetch(src.ID, string(src.Mode), time.Since(start), len(articles))

	if r.enhancer != nil && len(articles) > 0 {
		articles = r.enhancer.Enhance(ctx, articles)
	}

	r.logger.Debug("source fetched",
		slog.String("source_id", src.ID),
		slog.String("mode", string(src.Mode)),
		slog.Int("items", len(articles)),
		slog.Duration("duration", time.Since(start)))
	return articles, nil
}

// ErrorType buckets a fetch error for the source_fetch_errors metric.
func ErrorType(err error) string {
	var httpErr *retry.HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ssrf.ErrInvalidURL), errors.Is(err, ssrf.ErrPrivateAddress):
		return "refused_url"
	case errors.Is(err, ErrBodyTooLarge):
		return "body_too_large"
	case errors.As(err, &httpErr):
		if httpErr.StatusCode >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	default:
		return "other"
	}
}
