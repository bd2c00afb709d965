package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loaded is the outcome of reading one environment variable.
//
// Loaders never fail: a value that cannot be parsed or does not pass
// validation is replaced by the default and described in Warning.
type Loaded[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

func fallback[T any](key, raw string, def T, err error) Loaded[T] {
	return Loaded[T]{
		Value:           def,
		Warning:         fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", key, raw, err, def),
		FallbackApplied: true,
	}
}

// LoadString reads key, validating it when validate is non-nil.
// An unset or empty variable yields the default without a warning.
func LoadString(key, def string, validate func(string) error) Loaded[string] {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return Loaded[string]{Value: def}
	}
	if validate != nil {
		if err := validate(raw); err != nil {
			return fallback(key, raw, def, err)
		}
	}
	return Loaded[string]{Value: raw}
}

// LoadInt reads key as a base-10 integer.
func LoadInt(key string, def int, validate func(int) error) Loaded[int] {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return Loaded[int]{Value: def}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback(key, raw, def, fmt.Errorf("invalid integer format"))
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return fallback(key, raw, def, err)
		}
	}
	return Loaded[int]{Value: v}
}

// LoadDuration reads key with time.ParseDuration ("30s", "5m", "336h").
func LoadDuration(key string, def time.Duration, validate func(time.Duration) error) Loaded[time.Duration] {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return Loaded[time.Duration]{Value: def}
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback(key, raw, def, err)
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return fallback(key, raw, def, err)
		}
	}
	return Loaded[time.Duration]{Value: v}
}

// LoadBool reads key as one of 1/t/true/0/f/false in any case.
func LoadBool(key string, def bool) Loaded[bool] {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return Loaded[bool]{Value: def}
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback(key, raw, def, fmt.Errorf("invalid boolean format, expected 'true' or 'false'"))
	}
	return Loaded[bool]{Value: v}
}

// Fallbacks collects the fallbacks applied while loading one component's
// configuration, logging each and recording it in metrics.
type Fallbacks struct {
	logger  *slog.Logger
	metrics *ConfigMetrics
	applied []string
}

// NewFallbacks returns a tracker. metrics may be nil.
func NewFallbacks(logger *slog.Logger, metrics *ConfigMetrics) *Fallbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallbacks{logger: logger, metrics: metrics}
}

// Resolve returns r.Value, noting the fallback under field when one was
// applied.
func Resolve[T any](f *Fallbacks, field string, r Loaded[T]) T {
	if r.FallbackApplied {
		f.applied = append(f.applied, field)
		f.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", r.Warning))
		if f.metrics != nil {
			f.metrics.RecordValidationError(field)
			f.metrics.RecordFallback(field)
		}
	}
	return r.Value
}

// Applied lists the fields that fell back, in load order.
func (f *Fallbacks) Applied() []string {
	return f.applied
}

// Finish publishes the fallback gauge and the load timestamp.
func (f *Fallbacks) Finish() {
	if f.metrics == nil {
		return
	}
	f.metrics.SetFallbackActive(len(f.applied) > 0)
	f.metrics.RecordLoadTimestamp()
}
