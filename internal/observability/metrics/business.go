package metrics

import (
	"time"
)

// RecordSourceFetch records one successful retrieval.
func RecordSourceFetch(sourceID, mode string, duration time.Duration, items int) {
	SourceFetchDuration.WithLabelValues(sourceID, mode).Observe(duration.Seconds())
	if items > 0 {
		ArticlesFetchedTotal.WithLabelValues(sourceID).Add(float64(items))
	}
}

// RecordSourceFetchError records a failed retrieval.
// errorType is a short stable label such as "fetch_failed" or "timeout".
func RecordSourceFetchError(sourceID, errorType string) {
	SourceFetchErrors.WithLabelValues(sourceID, errorType).Inc()
}

func RecordContentEnhance(result string) {
	ContentEnhanceTotal.WithLabelValues(result).Inc()
}

// RecordBreakerState mirrors gobreaker.State values (closed=0, half-open=1, open=2).
func RecordBreakerState(circuit string, state int) {
	CircuitBreakerState.WithLabelValues(circuit).Set(float64(state))
}

func RecordFiltered(reason string, n int) {
	if n <= 0 {
		return
	}
	ArticlesFilteredTotal.WithLabelValues(reason).Add(float64(n))
}

func RecordEmitted(country, priority string) {
	ArticlesEmittedTotal.WithLabelValues(country, priority).Inc()
}

func RecordScore(score int) {
	ArticleScore.Observe(float64(score))
}

func RecordRun(status string, duration time.Duration) {
	PipelineRunsTotal.WithLabelValues(status).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
}

func RecordStoreOp(operation string, duration time.Duration, err error) {
	DedupStoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DedupStoreErrors.WithLabelValues(operation).Inc()
	}
}
