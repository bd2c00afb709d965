// Package scraper retrieves candidate articles from catalog sources, either
// by parsing a syndication feed or by extracting listing blocks from an
// HTML page.
package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/circuitbreaker"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/retry"
	"github.com/heitormarin83/consultancy-news-agent/pkg/security/ssrf"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (compatible; ConsultancyNewsBot/1.0)"
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB
	maxRedirects       = 5
)

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodySize.
var ErrBodyTooLarge = errors.New("scraper: response body too large")

// Config holds settings shared by both strategies.
type Config struct {
	// Timeout bounds a single HTTP request, retries excluded.
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64

	// HostInterval is the minimum spacing between two requests to the same
	// host. Zero disables the limiter.
	HostInterval time.Duration

	// AllowPrivate lets requests reach loopback and private addresses.
	AllowPrivate bool

	// Document strategy.
	Selectors      []string
	MaxPerSelector int
	MinTitleLength int

	// Now stamps items without a publication date. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Timeout:        20 * time.Second,
		UserAgent:      defaultUserAgent,
		MaxBodySize:    defaultMaxBodySize,
		HostInterval:   500 * time.Millisecond,
		Selectors:      DefaultSelectors(),
		MaxPerSelector: 8,
		MinTitleLength: 25,
		Now:            time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if len(c.Selectors) == 0 {
		c.Selectors = d.Selectors
	}
	if c.MaxPerSelector <= 0 {
		c.MaxPerSelector = d.MaxPerSelector
	}
	if c.MinTitleLength <= 0 {
		c.MinTitleLength = d.MinTitleLength
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// NewHTTPClient returns a client that refuses private addresses at dial
// time and on redirects, and stops after five hops. Requests go direct: a
// proxy would hide the dialed address from the guard.
func NewHTTPClient(guard ssrf.Guard) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guard.Control,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			if _, err := guard.Check(req.Context(), req.URL.String()); err != nil {
				return fmt.Errorf("redirect target: %w", err)
			}
			return nil
		},
	}
}

// page is a fetched response body and the URL it was finally served from.
type page struct {
	body []byte
	url  *url.URL
}

// getter performs guarded, retried, rate-limited GETs. One breaker per host
// keeps a failing site from short-circuiting the others.
type getter struct {
	client   *http.Client
	cfg      Config
	guard    ssrf.Guard
	breakers *circuitbreaker.Registry
	retry    retry.Config
	limiter  *hostLimiter
}

func newGetter(client *http.Client, cfg Config, cb circuitbreaker.Config, rc retry.Config) *getter {
	guard := ssrf.Guard{AllowPrivate: cfg.AllowPrivate}
	if client == nil {
		client = NewHTTPClient(guard)
	}
	return &getter{
		client:   client,
		cfg:      cfg,
		guard:    guard,
		breakers: circuitbreaker.NewRegistry(cb),
		retry:    rc,
		limiter:  newHostLimiter(cfg.HostInterval),
	}
}

func (g *getter) get(ctx context.Context, rawURL string) (*page, error) {
	u, err := g.guard.Check(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	breaker := g.breakers.For(u.Host)

	return retry.Do(ctx, g.retry, func() (*page, error) {
		if err := g.limiter.wait(ctx, u.Host); err != nil {
			return nil, err
		}
		res, err := breaker.Execute(func() (interface{}, error) {
			return g.do(ctx, u)
		})
		if err != nil {
			return nil, err
		}
		return res.(*page), nil
	})
}

func (g *getter) do(ctx context.Context, u *url.URL) (*page, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en,pt;q=0.9,de;q=0.8,fr;q=0.7,es;q=0.6,it;q=0.5")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.cfg.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > g.cfg.MaxBodySize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, g.cfg.MaxBodySize)
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	slog.Debug("fetched page",
		slog.String("url", final.String()),
		slog.Int("bytes", len(body)))
	return &page{body: body, url: final}, nil
}

type hostLimiter struct {
	every    time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostLimiter(every time.Duration) *hostLimiter {
	return &hostLimiter{every: every, limiters: make(map[string]*rate.Limiter)}
}

func (h *hostLimiter) wait(ctx context.Context, host string) error {
	if h.every <= 0 {
		return nil
	}
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(h.every), 1)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
