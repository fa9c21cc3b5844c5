package fetch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jonwraymond/dashops/cache"
	"github.com/jonwraymond/dashops/observe"
)

// Default policy values applied when Options leaves a field unset.
const (
	DefaultRetries    = 2
	DefaultRetryDelay = 100 * time.Millisecond
	DefaultTimeout    = 10 * time.Second
)

// Loader is a caller-supplied asynchronous data load. It must honor ctx
// cancellation; the orchestrator cancels it when its attempt deadline
// elapses.
type Loader func(ctx context.Context) ([]byte, error)

// Options configures one orchestrated fetch.
type Options struct {
	// TTL is the cache lifetime for a successful result.
	// Non-positive values use the store's default policy TTL.
	TTL time.Duration

	// Retries is the number of additional attempts after the first failure.
	// Negative values use DefaultRetries; zero means a single attempt.
	Retries int

	// RetryDelay is the delay before the first retry. Subsequent retries
	// double it each attempt. Non-positive values use DefaultRetryDelay.
	RetryDelay time.Duration

	// Timeout bounds each individual loader attempt. Cancelling an attempt
	// does not abort the retry loop. Non-positive values use DefaultTimeout.
	Timeout time.Duration

	// Scope is the isolation boundary the result is cached under.
	// Empty means public data.
	Scope string
}

// DefaultOptions returns the documented fetch defaults.
func DefaultOptions() Options {
	return Options{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
	}
}

func (o Options) normalized() Options {
	if o.Retries < 0 {
		o.Retries = DefaultRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Orchestrator drives cache-first fetches against a Store.
//
// Concurrent misses on the same key are collapsed into a single loader
// invocation; late arrivals wait for the in-flight result instead of
// loading again.
type Orchestrator struct {
	store    cache.Store
	logger   observe.Logger
	metrics  observe.Metrics
	tracer   observe.Tracer
	throttle *rate.Limiter

	group singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(l observe.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics attaches fetch and cache metrics. Defaults to no-op metrics.
func WithMetrics(m observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer attaches a tracer producing one span per fetch.
func WithTracer(t observe.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithThrottle caps loader invocations at rps with the given burst, as a
// courtesy limit on outbound traffic. Cache hits are never throttled.
func WithThrottle(rps float64, burst int) Option {
	return func(o *Orchestrator) { o.throttle = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(store cache.Store, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := &Orchestrator{
		store:   store,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		tracer:  observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Fetch returns the cached value for key if one is live, and otherwise runs
// loader under the retry/timeout policy in opts, caching the result on
// success. A cache hit never triggers a background refresh.
//
// key identifies the resource; the storage key folds in opts.Scope, so the
// same resource fetched under two scopes never shares a cache entry.
func (o *Orchestrator) Fetch(ctx context.Context, key string, loader Loader, opts Options) ([]byte, error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	storeKey := cache.ScopedKey(opts.Scope, key)

	ctx, span := o.tracer.StartSpan(ctx, observe.FetchMeta{Resource: key, Scope: opts.Scope})

	if value, ok := o.store.Get(ctx, storeKey); ok {
		o.metrics.RecordCacheLookup(ctx, "store", true)
		o.tracer.EndSpan(span, nil)
		return value, nil
	}
	o.metrics.RecordCacheLookup(ctx, "store", false)

	// Collapse concurrent misses for the same scoped key into one load. The
	// load runs on a context detached from any single caller's cancellation,
	// so a waiter never inherits the winner's cancelled ctx; each caller
	// still honors its own ctx while waiting.
	loadCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan(storeKey, func() (any, error) {
		return o.load(loadCtx, storeKey, key, loader, opts)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		o.tracer.EndSpan(span, ctx.Err())
		return nil, ctx.Err()
	case res = <-ch:
	}

	o.tracer.EndSpan(span, res.Err)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		o.logger.Debug(ctx, "joined in-flight fetch", observe.Field{Key: "key", Value: key})
	}
	return res.Val.([]byte), nil
}

// load runs the retry loop and writes the result back to the store. storeKey
// is the scope-composed storage key; key stays the caller-facing resource
// name for logs and metrics.
func (o *Orchestrator) load(ctx context.Context, storeKey, key string, loader Loader, opts Options) ([]byte, error) {
	start := time.Now()

	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= opts.Retries+1; attempt++ {
		attempts = attempt

		value, err := o.attempt(ctx, loader, opts.Timeout)
		if err == nil {
			// Write back before returning so the next read under this key
			// observes the committed value.
			if setErr := o.store.Set(ctx, storeKey, value, opts.TTL, opts.Scope); setErr != nil {
				o.logger.Warn(ctx, "cache write-back failed",
					observe.Field{Key: "key", Value: key},
					observe.Field{Key: "error", Value: setErr.Error()},
				)
			}
			o.metrics.RecordFetch(ctx, key, attempts, time.Since(start), nil)
			return value, nil
		}
		lastErr = err

		// Timeouts and loader failures retry identically.
		if attempt > opts.Retries {
			break
		}

		delay := opts.RetryDelay << (attempt - 1)
		o.logger.Debug(ctx, "loader failed, retrying",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay", Value: delay.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)

		select {
		case <-ctx.Done():
			o.metrics.RecordFetch(ctx, key, attempts, time.Since(start), ctx.Err())
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	err := fmt.Errorf("fetch: %d attempts for %q exhausted: %w", attempts, key, lastErr)
	o.metrics.RecordFetch(ctx, key, attempts, time.Since(start), err)
	return nil, err
}

// attempt runs one loader invocation under its own deadline. The deadline
// aborts only this attempt; the caller's retry bookkeeping continues.
func (o *Orchestrator) attempt(ctx context.Context, loader Loader, timeout time.Duration) ([]byte, error) {
	if o.throttle != nil {
		if err := o.throttle.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value []byte
		err   error
	}
	done := make(chan result, 1)

	go func() {
		value, err := loader(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}
