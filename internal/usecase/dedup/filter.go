package dedup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/metrics"
	"github.com/heitormarin83/consultancy-news-agent/internal/repository"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
)

// ErrNilRepository is returned by NewFilter without a store.
var ErrNilRepository = errors.New("dedup: nil repository")

// Filter decides which articles were already delivered.
//
// Store failures never suppress an article: a failed lookup counts as
// "not sent", so a broken store degrades to over-delivery.
type Filter struct {
	repo   repository.SentRepository
	retry  retry.Config
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Filter.
type Option func(*Filter)

func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) { f.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

func WithRetry(cfg retry.Config) Option {
	return func(f *Filter) { f.retry = cfg }
}

func NewFilter(repo repository.SentRepository, opts ...Option) (*Filter, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	f := &Filter{
		repo:   repo,
		retry:  retry.StoreConfig(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// KeyOf returns the fingerprint of a.
func KeyOf(a entity.Article) string {
	return Fingerprint(a.Title, a.URL, a.SourceID)
}

// AlreadySent reports whether the fingerprint is in the store.
func (f *Filter) AlreadySent(ctx context.Context, fingerprint string) bool {
	start := time.Now()
	exists, err := retry.Do(ctx, f.retry, func() (bool, error) {
		return f.repo.Exists(ctx, fingerprint)
	})
	metrics.RecordStoreOp("exists", time.Since(start), err)
	if err != nil {
		f.logger.Error("dedup lookup failed, treating as not sent",
			slog.String("fingerprint", fingerprint),
			slog.Any("error", err))
		return false
	}
	return exists
}

// MarkSent records a as delivered.
func (f *Filter) MarkSent(ctx context.Context, a entity.Article) error {
	rec := NewRecord(a, f.now())

	start := time.Now()
	err := retry.WithBackoff(ctx, f.retry, func() error {
		return f.repo.Insert(ctx, rec)
	})
	metrics.RecordStoreOp("insert", time.Since(start), err)
	if err != nil {
		f.logger.Error("dedup insert failed",
			slog.String("fingerprint", rec.Fingerprint),
			slog.String("url", rec.URL),
			slog.Any("error", err))
		return err
	}
	return nil
}

// NewRecord builds the dedup record of an emitted article.
func NewRecord(a entity.Article, sentAt time.Time) entity.SentRecord {
	return entity.SentRecord{
		Fingerprint: KeyOf(a),
		Title:       a.Title,
		URL:         a.URL,
		Source:      a.SourceName,
		Country:     a.Country,
		Language:    a.Language,
		Category:    a.Category,
		Priority:    a.Priority,
		Score:       a.Score,
		SentAt:      sentAt.UTC(),
	}
}
