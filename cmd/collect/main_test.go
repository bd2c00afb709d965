package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heitormarin83/consultancy-news-agent/internal/app"
	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &errOut
	err := a.RunContext(context.Background(), append([]string{"collect"}, args...))
	return out.String(), err
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	pub := time.Now().Add(-2 * time.Hour).Format(time.RFC1123Z)
	body := fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Consulting Wire</title>
<item><title>McKinsey expands consulting practice in Brazil</title><link>https://wire.test/mckinsey-brazil</link><description>The firm opened a new office.</description><pubDate>%s</pubDate></item>
<item><title>Stock market closes higher</title><link>https://wire.test/markets</link><description>Indexes rose on inflation and gdp data.</description><pubDate>%s</pubDate></item>
</channel></rss>`, pub, pub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeCatalog(t *testing.T, feedURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
groups:
  - name: wires
    sources:
      - {id: wire, url: "%s/rss", name: Consulting Wire, country: Global, language: en, priority: high}
keywords:
  en:
    firms: [mckinsey]
    activities: [consulting]
    exclude: [gdp, inflation]
`, feedURL)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_PrintsShortlistAndRemembersIt(t *testing.T) {
	srv := feedServer(t)
	cat := writeCatalog(t, srv.URL)
	store := filepath.Join(t.TempDir(), "history.db")
	args := []string{"run", "--catalog", cat, "--store-path", store, "--allow-private"}

	out, err := runApp(t, args...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var a entity.Article
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &a))
	assert.Equal(t, "McKinsey expands consulting practice in Brazil", a.Title)
	assert.Equal(t, "https://wire.test/mckinsey-brazil", a.URL)
	assert.GreaterOrEqual(t, a.Score, 70)

	out, err = runApp(t, args...)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestRun_DryRunDoesNotRecord(t *testing.T) {
	srv := feedServer(t)
	cat := writeCatalog(t, srv.URL)
	store := filepath.Join(t.TempDir(), "history.db")
	args := []string{"run", "--catalog", cat, "--store-path", store, "--allow-private", "--dry-run", "--format", "table"}

	for i := 0; i < 2; i++ {
		out, err := runApp(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "McKinsey expands consulting practice in Brazil")
		assert.Contains(t, out, "status: delivered")
	}
}

func TestRun_LoopbackRefusedWithoutFlag(t *testing.T) {
	srv := feedServer(t)
	cat := writeCatalog(t, srv.URL)
	store := filepath.Join(t.TempDir(), "history.db")

	out, err := runApp(t, "run", "--catalog", cat, "--store-path", store, "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "status: all_sources_failed")
}

func TestRun_InvalidFlags(t *testing.T) {
	_, err := runApp(t, "run", "--format", "xml")
	assert.ErrorContains(t, err, "--format")

	_, err = runApp(t, "run", "--min-priority", "urgent", "--store-path", filepath.Join(t.TempDir(), "h.db"))
	assert.ErrorContains(t, err, "--min-priority")

	_, err = runApp(t, "run", "--store-driver", "mysql")
	assert.ErrorIs(t, err, app.ErrUnknownDriver)
}

func TestSources_ListsBuiltInCatalog(t *testing.T) {
	out, err := runApp(t, "sources", "--group", "local_leaders")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "falconi")
	assert.Contains(t, out, "local_leaders")
	assert.NotContains(t, out, "consultancy-org")
}

func TestSources_MaxPerGroup(t *testing.T) {
	out, err := runApp(t, "sources", "--max-per-group", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "consultancy-org")
	assert.NotContains(t, out, "management-consulted")
}

func TestStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	store, err := app.OpenStore(ctx, app.StoreOptions{Driver: "sqlite", Path: path}, nil)
	require.NoError(t, err)
	for i, rec := range []entity.SentRecord{
		{Source: "Falconi", Country: "Brazil", Category: "Consulting Website", Score: 78},
		{Source: "Falconi", Country: "Brazil", Category: "Consulting RSS", Score: 91},
		{Source: "BCG Global", Country: "Global", Category: "Consulting Website", Score: 85},
		{Source: "Old", Country: "USA", Category: "Consulting RSS", Score: 99, SentAt: time.Now().AddDate(0, 0, -40)},
	} {
		rec.Fingerprint = fmt.Sprintf("fp-%d", i)
		rec.Title, rec.URL = "t", "u"
		if rec.SentAt.IsZero() {
			rec.SentAt = time.Now()
		}
		require.NoError(t, store.Insert(ctx, rec))
	}
	require.NoError(t, store.Close())

	out, err := runApp(t, "stats", "--store-path", path, "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Articles sent in the last 30 days: 3")
	assert.Contains(t, out, "Brazil")
	assert.NotContains(t, out, "USA")

	out, err = runApp(t, "stats", "--store-path", path, "--days", "60", "--format", "json")
	require.NoError(t, err)
	var stats entity.SentStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ByCountry["Brazil"])
	assert.Equal(t, 2, stats.ByBand["90+"])

	_, err = runApp(t, "stats", "--store-path", path, "--days", "0")
	assert.Error(t, err)
}

func TestSortedKeys(t *testing.T) {
	keys := sortedKeys(map[string]int{"b": 2, "a": 2, "c": 5})
	assert.Equal(t, []string{"c", "a", "b"}, keys)
}
