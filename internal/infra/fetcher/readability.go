package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/infra/scraper"
	"github.com/heitormarin83/consultancy-news-agent/internal/observability/metrics"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/circuitbreaker"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
	"github.com/heitormarin83/consultancy-news-agent/pkg/security/ssrf"
)

var (
	ErrBodyTooLarge      = errors.New("fetcher: response body too large")
	ErrReadabilityFailed = errors.New("fetcher: no readable content")
)

const userAgent = "Mozilla/5.0 (compatible; ConsultancyNewsBot/1.0)"

// ReadabilityEnhancer replaces short summaries with the main text of the
// linked page.
type ReadabilityEnhancer struct {
	client  *http.Client
	guard   ssrf.Guard
	breaker *circuitbreaker.CircuitBreaker
	config  ContentFetchConfig
	logger  *slog.Logger
}

var _ scraper.Enhancer = (*ReadabilityEnhancer)(nil)

func NewReadabilityEnhancer(config ContentFetchConfig, logger *slog.Logger) *ReadabilityEnhancer {
	if logger == nil {
		logger = slog.Default()
	}
	guard := ssrf.Guard{AllowPrivate: !config.DenyPrivateIPs}
	return &ReadabilityEnhancer{
		client: scraper.NewHTTPClient(guard),
		guard:  guard,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "content-fetch",
			MaxRequests:      5,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
		}),
		config: config,
		logger: logger,
	}
}

// Enhance fetches pages for articles whose summary is shorter than the
// threshold. Failures keep the original summary; the slice is updated in
// place and returned.
func (e *ReadabilityEnhancer) Enhance(ctx context.Context, articles []entity.Article) []entity.Article {
	if !e.config.Enabled {
		return articles
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Parallelism)
	for i := range articles {
		if utf8.RuneCountInString(articles[i].Summary) >= e.config.Threshold {
			metrics.RecordContentEnhance("skipped")
			continue
		}
		i := i
		g.Go(func() error {
			text, err := e.FetchContent(gctx, articles[i].URL)
			if err != nil {
				metrics.RecordContentEnhance("failed")
				e.logger.Debug("content enhancement failed",
					slog.String("url", articles[i].URL),
					slog.Any("error", err))
				return nil
			}
			metrics.RecordContentEnhance("enhanced")
			articles[i].Summary = text
			return nil
		})
	}
	_ = g.Wait()
	return articles
}

// FetchContent returns the readable text of the page at rawURL, capped at
// MaxSummaryLength runes.
func (e *ReadabilityEnhancer) FetchContent(ctx context.Context, rawURL string) (string, error) {
	u, err := e.guard.Check(ctx, rawURL)
	if err != nil {
		return "", err
	}
	res, err := e.breaker.Execute(func() (interface{}, error) {
		return e.doFetch(ctx, u)
	})
	if err != nil {
		return "", err
	}
	return truncate(res.(string), e.config.MaxSummaryLength), nil
}

func (e *ReadabilityEnhancer) doFetch(ctx context.Context, u *url.URL) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > e.config.MaxBodySize {
		return "", fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, e.config.MaxBodySize)
	}

	pageURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReadabilityFailed, err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		text = strings.Join(strings.Fields(article.Excerpt), " ")
	}
	if text == "" {
		return "", ErrReadabilityFailed
	}
	return text, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
