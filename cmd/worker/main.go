// Command worker runs the collector on a cron schedule and serves the ops
// endpoints (/health, /health/ready, /metrics, /runs/last).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heitormarin83/consultancy-news-agent/internal/app"
	"github.com/heitormarin83/consultancy-news-agent/internal/catalog"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/fetcher"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/scheduler"
	workerPkg "github.com/heitormarin83/consultancy-news-agent/internal/infra/worker"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := initLogger()
	if err := run(logger); err != nil {
		logger.Error("worker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics(nil)
	cfg, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		return fmt.Errorf("load worker configuration: %w", err)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Int("pool_size", cfg.PoolSize),
		slog.Duration("run_timeout", cfg.RunTimeout),
		slog.String("store_driver", cfg.StoreDriver),
		slog.Int("health_port", cfg.HealthPort))

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded",
		slog.Int("sources", len(cat.All())),
		slog.Any("groups", cat.GroupNames()),
		slog.Any("languages", cat.Languages()))

	store, err := app.OpenStore(ctx, app.StoreOptions{
		Driver:      cfg.StoreDriver,
		Path:        cfg.StorePath,
		DatabaseURL: cfg.DatabaseURL,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close dedup store", slog.Any("error", err))
		}
	}()

	svc, err := app.Build(cat, store, pipelineOptions(logger, cfg), logger)
	if err != nil {
		return err
	}

	health := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger,
		workerPkg.WithStats(store.Stats, 7*24*time.Hour))
	job := workerPkg.NewJob(svc, workerMetrics, health, logger)

	sched := scheduler.New(cfg.Location(), logger)
	if _, err := sched.Add("collect", cfg.CronSchedule, job.Run); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := health.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		health.SetReady(true)
		logger.Info("worker started", slog.Time("next_run", sched.Next("collect")))

		<-gctx.Done()
		health.SetReady(false)

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			return fmt.Errorf("scheduler stop: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("worker stopped")
	return err
}

func pipelineOptions(logger *slog.Logger, cfg *workerPkg.Config) app.PipelineOptions {
	opts := app.DefaultPipelineOptions()
	opts.Collect = cfg.Pipeline()
	opts.Scoring = cfg.Scoring()

	contentFetch, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid content fetch configuration, content fetching disabled", slog.Any("error", err))
		contentFetch = fetcher.DefaultConfig()
		contentFetch.Enabled = false
	} else {
		contentFetch.Enabled = cfg.ContentFetchEnabled
	}
	opts.ContentFetch = contentFetch
	return opts
}
