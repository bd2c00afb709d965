package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retrieval metrics.
var (
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Time taken to retrieve one source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source_id", "mode"},
	)

	SourceFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetch_errors_total",
			Help: "Total number of source retrieval failures",
		},
		[]string{"source_id", "error_type"},
	)

	ArticlesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_fetched_total",
			Help: "Total number of raw items retrieved from sources",
		},
		[]string{"source_id"},
	)

	ContentEnhanceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_enhance_total",
			Help: "Summary enhancement attempts through readability extraction",
		},
		[]string{"result"}, // enhanced, failed, skipped
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"circuit"},
	)
)

// Pipeline metrics.
var (
	ArticlesFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_filtered_total",
			Help: "Items dropped by a pipeline stage",
		},
		[]string{"reason"}, // invalid, off_topic, stale, below_threshold, duplicate, already_sent, capped
	)

	ArticlesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_emitted_total",
			Help: "Items emitted in the final shortlist",
		},
		[]string{"country", "priority"},
	)

	ArticleScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "article_relevance_score",
			Help:    "Relevance score of classified items",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"status"}, // delivered, nothing_new, all_sources_failed
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Wall time of a full pipeline run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// Dedup store metrics.
var (
	DedupStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_store_errors_total",
			Help: "Dedup store failures by operation",
		},
		[]string{"operation"}, // exists, insert
	)

	DedupStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedup_store_duration_seconds",
			Help:    "Dedup store round trip duration",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)
)
