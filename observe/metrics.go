package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request-governance metrics: cache traffic, fetch outcomes,
// and rate limit decisions.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCacheLookup records one cache read against the named tier.
	RecordCacheLookup(ctx context.Context, tier string, hit bool)

	// RecordFetch records a completed fetch with its attempt count,
	// total duration, and error status.
	RecordFetch(ctx context.Context, resource string, attempts int, duration time.Duration, err error)

	// RecordLimitDecision records one rate limit decision.
	RecordLimitDecision(ctx context.Context, allowed bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	cacheLookups  metric.Int64Counter
	fetchTotal    metric.Int64Counter
	fetchErrors   metric.Int64Counter
	fetchAttempts metric.Int64Counter
	fetchDuration metric.Float64Histogram
	limitTotal    metric.Int64Counter
}

// NewMetrics creates a Metrics instance recording through the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	cacheLookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Cache lookups by tier and outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"fetch.total",
		metric.WithDescription("Total number of orchestrated fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"fetch.errors",
		metric.WithDescription("Fetches that exhausted their retry budget"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	fetchAttempts, err := meter.Int64Counter(
		"fetch.loader_attempts",
		metric.WithDescription("Loader invocations including retries"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"fetch.duration_ms",
		metric.WithDescription("Fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	limitTotal, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		cacheLookups:  cacheLookups,
		fetchTotal:    fetchTotal,
		fetchErrors:   fetchErrors,
		fetchAttempts: fetchAttempts,
		fetchDuration: fetchDuration,
		limitTotal:    limitTotal,
	}, nil
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, tier string, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.tier", tier),
		attribute.Bool("cache.hit", hit),
	))
}

func (m *metricsImpl) RecordFetch(ctx context.Context, resource string, attempts int, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("fetch.resource", resource))

	m.fetchTotal.Add(ctx, 1, opt)
	m.fetchAttempts.Add(ctx, int64(attempts), opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordLimitDecision(ctx context.Context, allowed bool) {
	m.limitTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("ratelimit.allowed", allowed),
	))
}

// NopMetrics returns a metrics implementation that records nothing.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordCacheLookup(ctx context.Context, tier string, hit bool) {}
func (m *noopMetrics) RecordFetch(ctx context.Context, resource string, attempts int, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordLimitDecision(ctx context.Context, allowed bool) {}
