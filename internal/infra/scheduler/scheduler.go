// Package scheduler runs jobs on cron expressions. It is the only place
// where collection is triggered by time; the pipeline itself never sleeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/heitormarin83/consultancy-news-agent/internal/pkg/config"
)

var ErrNilJob = errors.New("scheduler: nil job")

// JobFunc is invoked on every tick. ctx is canceled when Stop gives up
// waiting.
type JobFunc func(ctx context.Context)

// Scheduler wraps a cron.Cron. A job that is still running when its next
// tick arrives is skipped, so runs never overlap. Panics are recovered and
// logged.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	names map[cron.EntryID]string
}

// New returns a stopped scheduler evaluating expressions in loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(config.CronParser),
			cron.WithLogger(cronLogger{logger}),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[cron.EntryID]string),
	}
}

// Add registers fn under name on spec.
func (s *Scheduler) Add(name, spec string, fn JobFunc) (cron.EntryID, error) {
	if fn == nil {
		return 0, ErrNilJob
	}
	id, err := s.cron.AddJob(spec, s.wrap(name, fn))
	if err != nil {
		return 0, fmt.Errorf("Add %s: %w", name, err)
	}
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()

	s.logger.Info("job scheduled",
		slog.String("job", name),
		slog.String("schedule", spec),
		slog.String("timezone", s.cron.Location().String()))
	return id, nil
}

func (s *Scheduler) wrap(name string, fn JobFunc) cron.Job {
	l := cronLogger{s.logger.With(slog.String("job", name))}
	return cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).Then(cron.FuncJob(func() {
		fn(s.ctx)
	}))
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running jobs. If ctx ends first the
// jobs' context is canceled and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("scheduler stop timed out, canceling running jobs")
		return ctx.Err()
	}
}

// Next returns the next activation of the job registered under name, or
// the zero time when it is unknown or the scheduler is not running.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.names {
		if n == name {
			return s.cron.Entry(id).Next
		}
	}
	return time.Time{}
}

// cronLogger adapts slog to cron.Logger. Cron's routine Info messages are
// logged at Debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
