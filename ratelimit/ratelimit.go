package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/dashops/observe"
)

// Default quota applied when a Config is missing or malformed. The limiter
// never rejects a request because of bad configuration; it substitutes
// these values instead.
const (
	DefaultMaxRequests = 60
	DefaultWindow      = time.Minute
)

// Config describes one quota: at most MaxRequests per Window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// withDefaults fills missing or malformed fields with the documented defaults.
func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Decision is the outcome of one rate limit check. The limiter always
// returns a Decision; error shaping (e.g. HTTP 429) is the serving layer's
// concern.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter is how long the client should wait before retrying.
	// Zero when the request is allowed.
	RetryAfter time.Duration
}

// windowEntry counts requests inside one fixed window. Once resetAt has
// passed the entry is logically dead even before the sweep removes it; the
// next check for its key starts a fresh window in place.
type windowEntry struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request counter. Each key gets an independent
// window; keys are typically derived from network origin plus an optional
// discriminator for finer-grained quotas.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	cfg     Config
	metrics observe.Metrics

	now func() time.Time // overridable in tests
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithMetrics attaches decision metrics. Defaults to no-op metrics.
func WithMetrics(m observe.Metrics) LimiterOption {
	return func(l *Limiter) { l.metrics = m }
}

// NewLimiter creates a limiter with the given default quota. Missing or
// malformed config falls back to DefaultMaxRequests per DefaultWindow.
func NewLimiter(cfg Config, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		entries: make(map[string]*windowEntry),
		cfg:     cfg.withDefaults(),
		metrics: observe.NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key composes a limiter key from a network origin and an optional
// discriminator (e.g. an endpoint class for per-route quotas).
func Key(origin, discriminator string) string {
	if origin == "" {
		origin = "unknown"
	}
	if discriminator == "" {
		return origin
	}
	return origin + ":" + discriminator
}

// Allow checks key against the limiter's default quota.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	return l.Check(ctx, key, l.cfg)
}

// Check applies the fixed-window algorithm to key under cfg. Zero-value
// cfg fields fall back to the limiter defaults. Check never fails: every
// call yields a usable Decision.
func (l *Limiter) Check(ctx context.Context, key string, cfg Config) Decision {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = l.cfg.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = l.cfg.Window
	}
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		// First request for this key, or the previous window has elapsed:
		// start a fresh window counting this request.
		entry = &windowEntry{count: 1, resetAt: now.Add(cfg.Window)}
		l.entries[key] = entry
		decision := Decision{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - 1,
			ResetAt:   entry.resetAt,
		}
		l.mu.Unlock()
		l.metrics.RecordLimitDecision(ctx, true)
		return decision
	}

	if entry.count < cfg.MaxRequests {
		entry.count++
		decision := Decision{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - entry.count,
			ResetAt:   entry.resetAt,
		}
		l.mu.Unlock()
		l.metrics.RecordLimitDecision(ctx, true)
		return decision
	}

	decision := Decision{
		Allowed:    false,
		Limit:      cfg.MaxRequests,
		Remaining:  0,
		ResetAt:    entry.resetAt,
		RetryAfter: entry.resetAt.Sub(now),
	}
	l.mu.Unlock()
	l.metrics.RecordLimitDecision(ctx, false)
	return decision
}

// Purge removes every entry whose window has elapsed and returns how many
// were dropped. Called by the periodic sweep; decisions never depend on it.
func (l *Limiter) Purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := 0
	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked windows, elapsed or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
