package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker verifies the durable cache tier is reachable.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a checker that pings the given redis client.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name returns the name of this checker.
func (c *RedisChecker) Name() string { return "cache-durable" }

// Check pings the durable tier. An unreachable tier is degraded, not
// unhealthy: the cache keeps serving volatile-only.
func (c *RedisChecker) Check(ctx context.Context) Result {
	if err := c.client.Ping(ctx).Err(); err != nil {
		r := Degraded("durable tier unreachable, serving volatile-only")
		r.Error = err
		return r
	}
	return Healthy("durable tier reachable")
}

// SweepReporter is the piece of the janitor the checker needs.
type SweepReporter interface {
	LastSweep() time.Time
	Interval() time.Duration
}

// JanitorChecker verifies the cleanup sweep is still ticking.
type JanitorChecker struct {
	janitor SweepReporter
}

// NewJanitorChecker creates a checker over the given janitor.
func NewJanitorChecker(janitor SweepReporter) *JanitorChecker {
	return &JanitorChecker{janitor: janitor}
}

// Name returns the name of this checker.
func (c *JanitorChecker) Name() string { return "sweep" }

// Check reports degraded when more than two sweep intervals have passed
// without a completed sweep. A stalled sweep only unbounds memory, it does
// not affect read correctness.
func (c *JanitorChecker) Check(_ context.Context) Result {
	last := c.janitor.LastSweep()
	if last.IsZero() {
		return Healthy("sweep not yet run")
	}

	stale := 2 * c.janitor.Interval()
	if age := time.Since(last); age > stale {
		return Degraded(fmt.Sprintf("last sweep %s ago, expected every %s", age.Round(time.Second), c.janitor.Interval()))
	}
	return Healthy("sweep running")
}
