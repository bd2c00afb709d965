package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/tracing"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/collect"
)

// StatsFunc reports what the dedup store holds since a point in time.
type StatsFunc func(ctx context.Context, since time.Time) (*entity.SentStats, error)

// HealthServer is the worker's ops endpoint:
//
//	GET /health        liveness, always 200
//	GET /health/ready  200 once SetReady(true), 503 before
//	GET /metrics       Prometheus exposition
//	GET /runs/last     summary of the last completed run, 404 before the first
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady atomic.Bool

	mu      sync.RWMutex
	lastRun *collect.Result

	stats       StatsFunc
	statsWindow time.Duration
	gatherer    prometheus.Gatherer

	server *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
}

type lastRunResponse struct {
	RunID         string           `json:"run_id"`
	StartedAt     time.Time        `json:"started_at"`
	Status        collect.Status   `json:"status"`
	TimedOut      bool             `json:"timed_out"`
	DryRun        bool             `json:"dry_run"`
	Stats         collect.Stats    `json:"stats"`
	FailedSources []string         `json:"failed_sources,omitempty"`
	Articles      []entity.Article `json:"articles"`

	History *entity.SentStats `json:"history,omitempty"`
}

// HealthOption configures a HealthServer.
type HealthOption func(*HealthServer)

// WithStats adds dedup store statistics over window to /runs/last.
func WithStats(fn StatsFunc, window time.Duration) HealthOption {
	return func(h *HealthServer) {
		h.stats = fn
		h.statsWindow = window
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) HealthOption {
	return func(h *HealthServer) { h.gatherer = g }
}

func NewHealthServer(addr string, logger *slog.Logger, opts ...HealthOption) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HealthServer{
		addr:        addr,
		logger:      logger,
		statsWindow: 7 * 24 * time.Hour,
		gatherer:    prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler returns the router. Exposed for tests.
func (h *HealthServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracing.Middleware)

	r.Get("/health", h.handleLiveness)
	r.Get("/health/ready", h.handleReadiness)
	r.Get("/runs/last", h.handleLastRun)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start serves until ctx is canceled, then shuts down gracefully. It
// returns http.ErrServerClosed after a clean shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:              h.addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		errChan <- h.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// SetLastRun publishes res on /runs/last.
func (h *HealthServer) SetLastRun(res *collect.Result) {
	h.mu.Lock()
	h.lastRun = res
	h.mu.Unlock()
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if h.isReady.Load() {
		h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
}

func (h *HealthServer) handleLastRun(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	res := h.lastRun
	h.mu.RUnlock()

	if res == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run completed yet"})
		return
	}

	body := lastRunResponse{
		RunID:         res.RunID,
		StartedAt:     res.StartedAt,
		Status:        res.Status(),
		TimedOut:      res.TimedOut,
		DryRun:        res.DryRun,
		Stats:         res.Stats,
		FailedSources: res.FailedSources,
		Articles:      res.Articles,
	}
	if body.Articles == nil {
		body.Articles = []entity.Article{}
	}

	if h.stats != nil {
		history, err := h.stats(r.Context(), time.Now().Add(-h.statsWindow))
		if err != nil {
			h.logger.Warn("failed to load dedup store stats", slog.Any("error", err))
		} else {
			body.History = history
		}
	}

	h.writeJSON(w, http.StatusOK, body)
}

func (h *HealthServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}
