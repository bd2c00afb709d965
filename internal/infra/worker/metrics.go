package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/heitormarin83/consultancy-news-agent/internal/pkg/config"
)

// WorkerMetrics covers configuration loading and scheduled job runs.
// Pipeline-level metrics live in internal/observability/metrics.
type WorkerMetrics struct {
	*config.ConfigMetrics

	JobRunsTotal         *prometheus.CounterVec
	JobDurationSeconds   prometheus.Histogram
	JobArticlesEmitted   prometheus.Counter
	JobLastSuccessTime   prometheus.Gauge
	JobInProgress        prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with reg, or with the
// default registerer when reg is nil.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics(reg, "worker"),

		JobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total number of scheduled collector runs by status",
		}, []string{"status"}), // delivered, nothing_new, all_sources_failed, error

		JobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of scheduled collector runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		JobArticlesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_job_articles_emitted_total",
			Help: "Total number of articles emitted across scheduled runs",
		}),

		JobLastSuccessTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last run that did not fail entirely",
		}),

		JobInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_job_in_progress",
			Help: "1 while a scheduled run is executing",
		}),
	}
}

func (m *WorkerMetrics) RecordJobRun(status string) {
	m.JobRunsTotal.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.JobDurationSeconds.Observe(seconds)
}

func (m *WorkerMetrics) RecordArticlesEmitted(count int) {
	m.JobArticlesEmitted.Add(float64(count))
}

func (m *WorkerMetrics) RecordLastSuccess() {
	m.JobLastSuccessTime.SetToCurrentTime()
}

func (m *WorkerMetrics) SetInProgress(running bool) {
	if running {
		m.JobInProgress.Set(1)
		return
	}
	m.JobInProgress.Set(0)
}
