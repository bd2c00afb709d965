// Package fetcher enriches short summaries with the readable text of the
// article page.
package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ContentFetchConfig controls summary enhancement.
type ContentFetchConfig struct {
	// Enabled turns the enhancer on. Off by default: the collector's scores
	// are computed on listing text.
	Enabled bool

	// Threshold is the summary length in runes below which the article page
	// is fetched.
	Threshold int

	// Timeout bounds a single page request.
	Timeout time.Duration

	// Parallelism caps concurrent page requests per source.
	Parallelism int

	MaxBodySize int64

	// MaxSummaryLength caps the extracted text kept as summary.
	MaxSummaryLength int

	// DenyPrivateIPs refuses loopback and private targets.
	DenyPrivateIPs bool
}

func DefaultConfig() ContentFetchConfig {
	return ContentFetchConfig{
		Enabled:          false,
		Threshold:        120,
		Timeout:          10 * time.Second,
		Parallelism:      4,
		MaxBodySize:      10 * 1024 * 1024, // 10MB
		MaxSummaryLength: 1000,
		DenyPrivateIPs:   true,
	}
}

// Validate rejects values that would disable timeouts or exhaust resources.
func (c *ContentFetchConfig) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %d", c.Threshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Parallelism < 1 || c.Parallelism > 50 {
		return fmt.Errorf("parallelism must be between 1 and 50, got %d", c.Parallelism)
	}
	minBodySize := int64(1024)
	maxBodySize := int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}
	if c.MaxSummaryLength < 1 {
		return fmt.Errorf("max summary length must be positive, got %d", c.MaxSummaryLength)
	}
	return nil
}

// LoadConfigFromEnv reads the CONTENT_FETCH_* variables over the defaults.
// Unlike the worker settings these are strict: a malformed value is an
// error rather than a fallback.
func LoadConfigFromEnv() (ContentFetchConfig, error) {
	cfg := DefaultConfig()

	vars := []struct {
		key   string
		parse func(string) error
	}{
		{"CONTENT_FETCH_ENABLED", func(v string) (err error) { cfg.Enabled, err = strconv.ParseBool(v); return }},
		{"CONTENT_FETCH_THRESHOLD", func(v string) (err error) { cfg.Threshold, err = strconv.Atoi(v); return }},
		{"CONTENT_FETCH_TIMEOUT", func(v string) (err error) { cfg.Timeout, err = time.ParseDuration(v); return }},
		{"CONTENT_FETCH_PARALLELISM", func(v string) (err error) { cfg.Parallelism, err = strconv.Atoi(v); return }},
		{"CONTENT_FETCH_MAX_BODY_SIZE", func(v string) (err error) { cfg.MaxBodySize, err = strconv.ParseInt(v, 10, 64); return }},
		{"CONTENT_FETCH_MAX_SUMMARY_LENGTH", func(v string) (err error) { cfg.MaxSummaryLength, err = strconv.Atoi(v); return }},
		{"CONTENT_FETCH_DENY_PRIVATE_IPS", func(v string) (err error) { cfg.DenyPrivateIPs, err = strconv.ParseBool(v); return }},
	}
	for _, v := range vars {
		raw := strings.TrimSpace(os.Getenv(v.key))
		if raw == "" {
			continue
		}
		if err := v.parse(raw); err != nil {
			return cfg, fmt.Errorf("invalid %s='%s': %w", v.key, raw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
