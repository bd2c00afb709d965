package collect

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/logging"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/metrics"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/tracing"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/dedup"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/selection"
)

const ellipsis = "..."

// process runs the single-threaded stages over the retrieved candidates and
// returns the shortlist.
func (s *Service) process(ctx context.Context, raw []entity.Article, stats *Stats) []entity.Article {
	logger := logging.FromContext(ctx)

	ctx, span := tracing.StartSpan(ctx, "collect.filter", attribute.Int("candidates", len(raw)))
	candidates := s.filter(raw, stats, logger)
	span.SetAttributes(attribute.Int("passed", len(candidates)))
	tracing.EndSpan(span, nil)

	ctx, span = tracing.StartSpan(ctx, "collect.dedup", attribute.Int("candidates", len(candidates)))
	fresh := s.dropDelivered(ctx, candidates, stats)
	span.SetAttributes(attribute.Int("new", len(fresh)))
	tracing.EndSpan(span, nil)

	_, span = tracing.StartSpan(ctx, "collect.select", attribute.Int("candidates", len(fresh)))
	shortlist := selection.Select(fresh, s.cfg.Limits)
	stats.Capped = len(fresh) - len(shortlist)
	metrics.RecordFiltered("capped", stats.Capped)
	for i := range shortlist {
		shortlist[i].Summary = s.truncateSummary(shortlist[i])
	}
	span.SetAttributes(attribute.Int("selected", len(shortlist)))
	tracing.EndSpan(span, nil)

	s.markSent(ctx, shortlist, stats)

	for _, a := range shortlist {
		metrics.RecordEmitted(a.Country, string(a.Priority))
	}
	return shortlist
}

// filter applies validity, classification, scoring, freshness, threshold and
// in-run duplicate checks, in that order.
func (s *Service) filter(raw []entity.Article, stats *Stats, logger *slog.Logger) []entity.Article {
	now := s.now()
	seen := make(map[string]struct{}, len(raw))
	out := make([]entity.Article, 0, len(raw))

	for _, a := range raw {
		a.Title = strings.TrimSpace(a.Title)
		a.URL = strings.TrimSpace(a.URL)
		if a.Title == "" || a.URL == "" {
			stats.Invalid++
			continue
		}

		if !s.deps.Classifier.IsInDomain(a.Title, a.Summary, a.Language) {
			stats.OffTopic++
			continue
		}

		a.Score = s.deps.Scorer.Score(a.Title, a.Summary, a.SourceName, a.Language)
		a.Category = a.Mode.Category()
		if !a.Priority.Valid() {
			a.Priority = entity.PriorityMedium
		}
		metrics.RecordScore(a.Score)

		if s.cfg.FreshnessWindow > 0 && now.Sub(a.PublishedAt) > s.cfg.FreshnessWindow {
			stats.Stale++
			continue
		}

		if !s.deps.Scorer.Passes(a.Score, a.Mode) {
			stats.BelowThreshold++
			continue
		}

		key := dedup.NormalizeTitle(a.Title) + "|" + a.SourceID
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		logger.Debug("candidate accepted",
			slog.String("source_id", a.SourceID),
			slog.String("title", a.Title),
			slog.Int("score", a.Score))
		out = append(out, a)
	}

	metrics.RecordFiltered("invalid", stats.Invalid)
	metrics.RecordFiltered("off_topic", stats.OffTopic)
	metrics.RecordFiltered("stale", stats.Stale)
	metrics.RecordFiltered("below_threshold", stats.BelowThreshold)
	metrics.RecordFiltered("duplicate", stats.Duplicates)
	return out
}

func (s *Service) dropDelivered(ctx context.Context, candidates []entity.Article, stats *Stats) []entity.Article {
	out := make([]entity.Article, 0, len(candidates))
	for _, a := range candidates {
		if s.deps.Dedup.AlreadySent(ctx, dedup.KeyOf(a)) {
			stats.AlreadySent++
			continue
		}
		out = append(out, a)
	}
	metrics.RecordFiltered("already_sent", stats.AlreadySent)
	return out
}

// markSent records emitted items only. A failed insert is counted and the
// item is still emitted.
func (s *Service) markSent(ctx context.Context, shortlist []entity.Article, stats *Stats) {
	if s.cfg.DryRun || len(shortlist) == 0 {
		return
	}
	ctx, span := tracing.StartSpan(ctx, "collect.mark_sent", attribute.Int("items", len(shortlist)))
	defer tracing.EndSpan(span, nil)

	for _, a := range shortlist {
		if err := s.deps.Dedup.MarkSent(ctx, a); err != nil {
			stats.StoreErrors++
		}
	}
	span.SetAttributes(attribute.Int("store_errors", stats.StoreErrors))
}

func (s *Service) truncateSummary(a entity.Article) string {
	limit := s.cfg.FeedSummaryLength
	if a.Mode == entity.ModeDocument {
		limit = s.cfg.DocumentSummaryLength
	}
	return Truncate(a.Summary, limit)
}

// Truncate keeps the first limit runes of s and appends "..." when it cuts.
// A non-positive limit leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + ellipsis
}
