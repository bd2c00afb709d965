package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/collect"
)

// Runner executes one collector run.
type Runner interface {
	Run(ctx context.Context) (*collect.Result, error)
}

// Job is the scheduled unit of work: one pipeline run, with its outcome
// recorded in metrics and published on the health server.
type Job struct {
	runner  Runner
	metrics *WorkerMetrics
	health  *HealthServer
	logger  *slog.Logger
}

// NewJob wires a runner to its observers. metrics and health may be nil.
func NewJob(runner Runner, metrics *WorkerMetrics, health *HealthServer, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{runner: runner, metrics: metrics, health: health, logger: logger}
}

// Run executes the pipeline once. It matches scheduler.JobFunc.
func (j *Job) Run(ctx context.Context) {
	start := time.Now()
	j.logger.Info("scheduled collection started")
	if j.metrics != nil {
		j.metrics.SetInProgress(true)
		defer j.metrics.SetInProgress(false)
	}

	res, err := j.runner.Run(ctx)
	elapsed := time.Since(start)
	if j.metrics != nil {
		j.metrics.RecordJobDuration(elapsed.Seconds())
	}

	if err != nil {
		if j.metrics != nil {
			j.metrics.RecordJobRun("error")
		}
		j.logger.Error("scheduled collection failed",
			slog.Any("error", err),
			slog.Duration("duration", elapsed))
		return
	}

	status := res.Status()
	if j.metrics != nil {
		j.metrics.RecordJobRun(string(status))
		j.metrics.RecordArticlesEmitted(len(res.Articles))
		if status != collect.StatusAllSourcesFailed {
			j.metrics.RecordLastSuccess()
		}
	}
	if j.health != nil {
		j.health.SetLastRun(res)
	}

	level := slog.LevelInfo
	if status == collect.StatusAllSourcesFailed {
		level = slog.LevelError
	}
	j.logger.Log(ctx, level, "scheduled collection completed",
		slog.String("run_id", res.RunID),
		slog.String("status", string(status)),
		slog.Int("emitted", len(res.Articles)),
		slog.Bool("timed_out", res.TimedOut),
		slog.Duration("duration", elapsed))

	for i, a := range res.Articles {
		j.logger.Info("shortlist item",
			slog.String("run_id", res.RunID),
			slog.Int("rank", i+1),
			slog.Int("score", a.Score),
			slog.String("source", a.SourceName),
			slog.String("country", a.Country),
			slog.String("title", a.Title),
			slog.String("url", a.URL))
	}
}
