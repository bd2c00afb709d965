package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/usecase/collect"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthServer_Liveness(t *testing.T) {
	h := NewHealthServer(":0", nil).Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestHealthServer_Readiness(t *testing.T) {
	server := NewHealthServer(":0", nil)
	h := server.Handler()

	rec := get(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready"}`, rec.Body.String())

	server.SetReady(true)
	rec = get(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	server.SetReady(false)
	rec = get(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkerMetrics(reg)
	m.RecordJobRun("delivered")

	h := NewHealthServer(":0", nil, WithGatherer(reg)).Handler()
	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `worker_job_runs_total{status="delivered"} 1`)
}

func TestHealthServer_LastRun(t *testing.T) {
	var since time.Time
	stats := func(_ context.Context, s time.Time) (*entity.SentStats, error) {
		since = s
		st := entity.NewSentStats()
		st.Add(entity.SentRecord{Source: "Falconi", Country: "Brazil", Category: "Consulting RSS", Score: 82})
		return st, nil
	}
	server := NewHealthServer(":0", nil, WithStats(stats, 24*time.Hour))
	h := server.Handler()

	rec := get(t, h, "/runs/last")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	server.SetLastRun(&collect.Result{
		RunID:    "run-1",
		Articles: []entity.Article{{Title: "McKinsey advises on merger", URL: "https://x.test/a", Score: 90}},
		Stats:    collect.Stats{SourcesAttempted: 2, SourcesFailed: 1, Emitted: 1},
	})

	rec = get(t, h, "/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var body lastRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, collect.StatusDelivered, body.Status)
	assert.Equal(t, 1, body.Stats.SourcesFailed)
	require.Len(t, body.Articles, 1)
	assert.Equal(t, 90, body.Articles[0].Score)
	require.NotNil(t, body.History)
	assert.Equal(t, 1, body.History.Total)
	assert.Equal(t, 1, body.History.ByBand["80-89"])
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), since, time.Minute)
}

func TestHealthServer_LastRun_StatsErrorOmitsHistory(t *testing.T) {
	stats := func(context.Context, time.Time) (*entity.SentStats, error) {
		return nil, errors.New("database is locked")
	}
	server := NewHealthServer(":0", nil, WithStats(stats, time.Hour))
	server.SetLastRun(&collect.Result{RunID: "run-2", Stats: collect.Stats{SourcesAttempted: 1}})

	rec := get(t, server.Handler(), "/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "history")
	assert.Equal(t, string(collect.StatusNothingNew), raw["status"])
	assert.Equal(t, []any{}, raw["articles"])
}

func TestHealthServer_UnknownRoute(t *testing.T) {
	rec := get(t, NewHealthServer(":0", nil).Handler(), "/admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestHealthServer_StartAndShutdown(t *testing.T) {
	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	server := NewHealthServer(addr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
