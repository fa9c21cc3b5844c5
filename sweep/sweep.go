package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/dashops/observe"
)

// DefaultInterval is the sweep cadence used when none is configured.
const DefaultInterval = time.Minute

// ErrAlreadyRunning is returned when Start is called on a running Janitor.
var ErrAlreadyRunning = errors.New("sweep: janitor already running")

// Purgeable is any keyed store that can drop its expired entries.
// Implemented by the cache memory store and the rate limiter.
type Purgeable interface {
	// Purge removes entries whose expiry condition has passed as of now
	// and returns how many were dropped.
	Purge(now time.Time) int
}

// Janitor periodically purges a set of targets. It has an explicit
// start/stop lifecycle tied to process startup and shutdown, so tests and
// short-lived processes never leak a timer.
type Janitor struct {
	interval time.Duration
	targets  []Purgeable
	logger   observe.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastSweep time.Time
}

// NewJanitor creates a janitor sweeping targets every interval.
// Non-positive intervals use DefaultInterval; a nil logger is replaced with
// a no-op logger.
func NewJanitor(interval time.Duration, logger observe.Logger, targets ...Purgeable) *Janitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Janitor{
		interval: interval,
		targets:  targets,
		logger:   logger,
	}
}

// Start launches the sweep loop. The loop stops when ctx is cancelled or
// Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.run(ctx)
	return nil
}

// Stop halts the sweep loop and waits for it to exit. Idempotent.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dropped := j.sweep(now)
			if dropped > 0 {
				j.logger.Debug(ctx, "sweep completed",
					observe.Field{Key: "dropped", Value: dropped},
				)
			}
		}
	}
}

func (j *Janitor) sweep(now time.Time) int {
	dropped := 0
	for _, target := range j.targets {
		dropped += target.Purge(now)
	}

	j.mu.Lock()
	j.lastSweep = now
	j.mu.Unlock()

	return dropped
}

// LastSweep reports when the janitor last completed a sweep. Zero until the
// first tick. Used by health checks to detect a stalled janitor.
func (j *Janitor) LastSweep() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSweep
}

// Interval returns the sweep cadence.
func (j *Janitor) Interval() time.Duration {
	return j.interval
}
