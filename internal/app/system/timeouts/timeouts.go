// Package timeouts holds the request-scoped time limits used by handlers.
//
// Handlers wrap their store and feed work in context.WithTimeout using
// these values. Bootstrap may override them from configuration with
// Configure before the router is built.
//
//   - Ping: health checks
//   - Short: single-item commands (add, delete)
//   - Medium: list reads and moves
//   - Long: summary runs and completions that touch several collections
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

var (
	mu      sync.RWMutex
	current = defaults()
)

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Long: DefaultLong}
}

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(current)
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short returns the timeout for single-item commands.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium returns the timeout for list reads and moves.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long returns the timeout for summary runs and multi-collection writes.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Configure sets custom timeout values. Zero or negative values are ignored.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithTimeout creates a context with timeout and returns a cancel function
// that logs a warning if the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "summary")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
