package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/logging"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/tracing"
)

// accumulator collects retrieval results per source. Once sealed, late
// results are dropped.
type accumulator struct {
	mu       sync.Mutex
	sealed   bool
	bySource map[string][]entity.Article
}

func (a *accumulator) add(src entity.Source, items []entity.Article) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return false
	}
	a.bySource[src.ID] = items
	return true
}

// seal stops accepting results and returns them in catalog order, so that
// downstream stages see the same sequence whatever the completion order.
func (a *accumulator) seal(sources []entity.Source) ([]entity.Article, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true

	var (
		articles []entity.Article
		failed   []string
	)
	for _, src := range sources {
		items, ok := a.bySource[src.ID]
		if !ok {
			failed = append(failed, src.ID)
			continue
		}
		articles = append(articles, items...)
	}
	return articles, failed
}

// retrieve fetches every source on a fixed-size pool. It returns when all
// tasks settle or the run deadline passes, whichever comes first; results
// still in flight at the deadline are discarded.
func (s *Service) retrieve(ctx context.Context, res *Result) ([]entity.Article, error) {
	logger := logging.FromContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "collect.retrieve",
		attribute.Int("pool.size", s.cfg.Workers))

	runCtx := ctx
	cancel := func() {}
	if s.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
	}
	defer cancel()

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, fmt.Errorf("retrieve: new pool: %w", err)
	}
	defer pool.Release()

	acc := &accumulator{bySource: make(map[string][]entity.Article)}
	sources := s.deps.Sources

	// Submit blocks while every worker is busy, so scheduling runs on its
	// own goroutine and the deadline below is observed even when a source
	// ignores cancellation.
	var wg sync.WaitGroup
	wg.Add(len(sources))
	go func() {
		for i, src := range sources {
			if runCtx.Err() != nil {
				wg.Add(-(len(sources) - i))
				return
			}
			src := src
			submitErr := pool.Submit(func() {
				defer wg.Done()
				s.fetchOne(runCtx, logger, src, acc)
			})
			if submitErr != nil {
				wg.Done()
				if runCtx.Err() == nil {
					logger.Error("could not schedule source",
						slog.String("source_id", src.ID),
						slog.Any("error", submitErr))
				}
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		logger.Warn("run deadline reached, discarding in-flight sources",
			slog.Duration("run_timeout", s.cfg.RunTimeout))
	}

	articles, failed := acc.seal(sources)
	sort.Strings(failed)
	res.FailedSources = failed
	res.Stats.SourcesAttempted = len(sources)
	res.Stats.SourcesFailed = len(failed)
	res.Stats.Fetched = len(articles)

	span.SetAttributes(
		attribute.Int("sources.failed", res.Stats.SourcesFailed),
		attribute.Int("articles.fetched", res.Stats.Fetched),
		attribute.Bool("run.timed_out", res.TimedOut))
	tracing.EndSpan(span, nil)
	return articles, nil
}

func (s *Service) fetchOne(ctx context.Context, logger *slog.Logger, src entity.Source, acc *accumulator) {
	if ctx.Err() != nil {
		return
	}
	sctx := ctx
	if s.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, s.cfg.SourceTimeout)
		defer cancel()
	}

	items, err := s.deps.Retriever.Fetch(sctx, src)
	if err != nil {
		logger.Warn("source fetch failed",
			slog.String("source_id", src.ID),
			slog.String("url", src.URL),
			slog.Any("error", err))
		return
	}
	if !acc.add(src, items) {
		logger.Debug("late source result discarded", slog.String("source_id", src.ID))
	}
}
