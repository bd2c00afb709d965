// Package circuitbreaker wraps sony/gobreaker with the settings used for
// remote sources and the dedup store.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/heitormarin83/consultancy-news-agent/internal/observability/metrics"
)

// Config describes when a breaker trips and how long it stays open.
type Config struct {
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period after which closed-state counts reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// FailureThreshold is the failure ratio (0.0-1.0) that trips the breaker.
	FailureThreshold float64

	// MinRequests is the number of requests needed before the ratio counts.
	MinRequests uint32

	// IsSuccessful decides which errors count as successes. Nil counts
	// every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

// FeedConfig trips a feed host after repeated failures within one run.
func FeedConfig() Config {
	return Config{
		Name:             "feed",
		MaxRequests:      1,
		Interval:         10 * time.Minute,
		Timeout:          30 * time.Minute,
		FailureThreshold: 1.0,
		MinRequests:      3,
	}
}

// DocumentConfig is FeedConfig for HTML pages.
func DocumentConfig() Config {
	cfg := FeedConfig()
	cfg.Name = "document"
	return cfg
}

// CircuitBreaker is a named gobreaker instance.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a breaker that trips on the configured failure ratio and logs
// every state change.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordBreakerState(name, int(to))
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs fn unless the breaker is open, in which case it returns
// gobreaker.ErrOpenState without calling fn.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// Registry hands out one breaker per key (usually a host name) so that one
// failing site never opens the circuit for another.
type Registry struct {
	base     Config
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose breakers are named "<base.Name>:<key>".
func NewRegistry(base Config) *Registry {
	return &Registry{
		base:     base,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for key, creating it on first use.
func (r *Registry) For(key string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cfg := r.base
	cfg.Name = r.base.Name + ":" + key
	cb := New(cfg)
	r.breakers[key] = cb
	return cb
}

// Open lists the keys whose breaker is currently open.
func (r *Registry) Open() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []string
	for k, cb := range r.breakers {
		if cb.IsOpen() {
			keys = append(keys, k)
		}
	}
	return keys
}
