package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
	"github.com/heitormarin83/consultancy-news-agent/pkg/security/ssrf"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AllowPrivate = true
	cfg.HostInterval = 0
	cfg.Timeout = 2 * time.Second
	cfg.Now = func() time.Time { return fixedNow }
	return cfg
}

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func source(id, url string, mode entity.FetchMode) entity.Source {
	return entity.Source{
		ID: id, URL: url, Name: "Consultancy.uk", Country: "UK",
		Language: "en", Priority: entity.PriorityHigh, Mode: mode,
	}
}

/* ──────────────────────────────── 1. Feed strategy ──────────────────────────────── */

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Consultancy.uk</title>
    <link>https://www.consultancy.uk</link>
    <item>
      <title>McKinsey opens &lt;b&gt;new&lt;/b&gt; office in Manchester</title>
      <link>/news/1</link>
      <description><![CDATA[<p>The firm <b>expands</b>   its UK footprint.</p>]]></description>
      <pubDate>Mon, 09 Mar 2026 07:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Entry without link</title>
      <description>dropped</description>
    </item>
    <item>
      <title>Bain partners with a retail client</title>
      <link>https://www.consultancy.uk/news/3</link>
    </item>
  </channel>
</rss>`

func TestFeedFetcher_Fetch(t *testing.T) {
	srv := serve(t, "application/rss+xml", rssFixture)
	f := NewFeedFetcher(nil, testConfig())

	got, err := f.Fetch(context.Background(), source("consultancy_uk", srv.URL+"/feed", entity.ModeFeed))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "McKinsey opens new office in Manchester", got[0].Title)
	assert.Equal(t, srv.URL+"/news/1", got[0].URL)
	assert.Equal(t, "The firm expands its UK footprint.", got[0].Summary)
	assert.True(t, got[0].PublishedAt.Equal(time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)))
	assert.Equal(t, "consultancy_uk", got[0].SourceID)
	assert.Equal(t, "UK", got[0].Country)
	assert.Zero(t, got[0].Score, "scoring happens downstream")

	assert.Equal(t, "Bain partners with a retail client", got[1].Title)
	assert.Equal(t, fixedNow, got[1].PublishedAt, "missing date falls back to now")
	assert.Empty(t, got[1].Summary)
}

func TestFeedFetcher_Atom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Insights</title>
  <entry>
    <title>Deloitte publishes its transformation outlook</title>
    <link href="https://example.com/outlook"/>
    <updated>2026-03-08T12:00:00Z</updated>
    <content type="html">&lt;p&gt;Full outlook&lt;/p&gt;</content>
  </entry>
</feed>`
	srv := serve(t, "application/atom+xml", atom)

	got, err := NewFeedFetcher(nil, testConfig()).
		Fetch(context.Background(), source("insights", srv.URL, entity.ModeFeed))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Full outlook", got[0].Summary, "content used when description is empty")
	assert.True(t, got[0].PublishedAt.Equal(time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)))
}

func TestFeedFetcher_NotAFeed(t *testing.T) {
	srv := serve(t, "text/plain", "definitely not xml")

	_, err := NewFeedFetcher(nil, testConfig()).
		Fetch(context.Background(), source("broken", srv.URL, entity.ModeFeed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feed")
}

/* ──────────────────────────────── 2. Document strategy ──────────────────────────────── */

const listingFixture = `<html><body>
<article class="news-item">
  <h2><a href="/press/accenture-acquires-data-firm">Accenture acquires a Brazilian data consultancy</a></h2>
  <p>The deal strengthens its analytics practice.</p>
  <time datetime="2026-03-05T10:00:00Z">5 March</time>
</article>
<article>
  <h3>Short headline</h3>
  <a href="/press/short">read</a>
</article>
<div class="press-release">
  <a href="https://other.example/pr/kpmg-advisory">KPMG expands advisory team in Frankfurt office</a>
</div>
<div class="insight-item">
  <h4>No link anywhere in this long enough insight block</h4>
</div>
</body></html>`

func TestDocumentFetcher_Fetch(t *testing.T) {
	srv := serve(t, "text/html", listingFixture)
	d := NewDocumentFetcher(nil, testConfig())

	got, err := d.Fetch(context.Background(), source("valor", srv.URL+"/news/", entity.ModeDocument))
	require.NoError(t, err)
	require.Len(t, got, 2, "article.news-item must be emitted once")

	assert.Equal(t, "Accenture acquires a Brazilian data consultancy", got[0].Title)
	assert.Equal(t, srv.URL+"/press/accenture-acquires-data-firm", got[0].URL)
	assert.Equal(t, "The deal strengthens its analytics practice.", got[0].Summary)
	assert.True(t, got[0].PublishedAt.Equal(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, "KPMG expands advisory team in Frankfurt office", got[1].Title)
	assert.Equal(t, "https://other.example/pr/kpmg-advisory", got[1].URL)
	assert.Equal(t, got[1].Title, got[1].Summary, "summary falls back to the title")
	assert.Equal(t, fixedNow, got[1].PublishedAt)
}

func TestDocumentFetcher_MaxPerSelector(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, `<div class="news-card"><a href="/n/%d">Strategy consulting update number %02d</a></div>`, i, i)
	}
	b.WriteString("</body></html>")
	srv := serve(t, "text/html", b.String())

	cfg := testConfig()
	cfg.Selectors = []string{".news-card"}
	got, err := NewDocumentFetcher(nil, cfg).
		Fetch(context.Background(), source("cards", srv.URL, entity.ModeDocument))
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestDocumentFetcher_EmptyPage(t *testing.T) {
	srv := serve(t, "text/html", "<html><body><p>nothing</p></body></html>")

	got, err := NewDocumentFetcher(nil, testConfig()).
		Fetch(context.Background(), source("empty", srv.URL, entity.ModeDocument))
	require.NoError(t, err)
	assert.Empty(t, got)
}

/* ──────────────────────────────── 3. HTTP behaviour ──────────────────────────────── */

func TestGetter_SendsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	_, err := NewFeedFetcher(nil, testConfig()).
		Fetch(context.Background(), source("ua", srv.URL, entity.ModeFeed))
	require.NoError(t, err)
	assert.Equal(t, defaultUserAgent, ua.Load())
}

func TestGetter_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewFeedFetcher(nil, testConfig()).
		Fetch(context.Background(), source("gone", srv.URL, entity.ModeFeed))

	var httpErr *retry.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetter_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	got, err := NewFeedFetcher(nil, testConfig()).
		Fetch(context.Background(), source("flaky", srv.URL, entity.ModeFeed))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetter_BodyTooLarge(t *testing.T) {
	srv := serve(t, "text/html", strings.Repeat("x", 2048))
	cfg := testConfig()
	cfg.MaxBodySize = 1024

	_, err := NewDocumentFetcher(nil, cfg).
		Fetch(context.Background(), source("huge", srv.URL, entity.ModeDocument))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestGetter_RefusesLoopbackByDefault(t *testing.T) {
	srv := serve(t, "text/html", listingFixture)
	cfg := testConfig()
	cfg.AllowPrivate = false

	_, err := NewDocumentFetcher(nil, cfg).
		Fetch(context.Background(), source("local", srv.URL, entity.ModeDocument))
	assert.ErrorIs(t, err, ssrf.ErrPrivateAddress)
}

func TestNewHTTPClient_RefusesPrivateDial(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	resp, err := NewHTTPClient(ssrf.Guard{}).Get(srv.URL)
	if resp != nil {
		_ = resp.Body.Close()
	}
	assert.ErrorIs(t, err, ssrf.ErrPrivateAddress)
	assert.Zero(t, hits.Load())

	resp, err = NewHTTPClient(ssrf.Guard{AllowPrivate: true}).Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, int32(1), hits.Load())
}

func TestHostLimiter_SpacesRequests(t *testing.T) {
	l := newHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.wait(ctx, "a.example"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.wait(ctx, "b.example"))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "hosts are limited independently")
}

/* ──────────────────────────────── 4. Retriever ──────────────────────────────── */

type stubFetcher struct {
	articles []entity.Article
	err      error
}

func (s stubFetcher) Fetch(context.Context, entity.Source) ([]entity.Article, error) {
	return s.articles, s.err
}

type markEnhancer struct{}

func (markEnhancer) Enhance(_ context.Context, in []entity.Article) []entity.Article {
	for i := range in {
		in[i].Summary += " (enhanced)"
	}
	return in
}

func TestRetriever_RoutesByMode(t *testing.T) {
	feed := stubFetcher{articles: []entity.Article{{Title: "from feed"}}}
	doc := stubFetcher{articles: []entity.Article{{Title: "from page"}}}
	r := NewRetriever(testConfig(),
		WithStrategy(entity.ModeFeed, feed),
		WithStrategy(entity.ModeDocument, doc),
		WithEnhancer(markEnhancer{}))

	got, err := r.Fetch(context.Background(), source("a", "https://example.com/rss", entity.ModeFeed))
	require.NoError(t, err)
	assert.Equal(t, "from feed", got[0].Title)
	assert.Equal(t, " (enhanced)", got[0].Summary)

	got, err = r.Fetch(context.Background(), source("b", "https://example.com/news", entity.ModeDocument))
	require.NoError(t, err)
	assert.Equal(t, "from page", got[0].Title)
}

func TestRetriever_Errors(t *testing.T) {
	r := NewRetriever(testConfig(),
		WithStrategy(entity.ModeFeed, stubFetcher{err: errors.New("boom")}))

	_, err := r.Fetch(context.Background(), source("a", "https://example.com/rss", entity.ModeFeed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch a")

	_, err = r.Fetch(context.Background(), source("c", "https://example.com", entity.FetchMode("ftp")))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrapped: %w", gobreaker.ErrOpenState), "circuit_open"},
		{&retry.HTTPError{StatusCode: 503}, "http_5xx"},
		{&retry.HTTPError{StatusCode: 403}, "http_4xx"},
		{ssrf.ErrPrivateAddress, "refused_url"},
		{ErrBodyTooLarge, "body_too_large"},
		{errors.New("mystery"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err), tt.err.Error())
	}
}
