package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	if r := Healthy("ok"); r.Status != StatusHealthy || r.Message != "ok" || r.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", r)
	}
	if r := Degraded("slow"); r.Status != StatusDegraded || r.Message != "slow" {
		t.Errorf("Degraded() = %+v", r)
	}

	cause := errors.New("boom")
	r := Unhealthy("down", cause)
	if r.Status != StatusUnhealthy || r.Error != cause {
		t.Errorf("Unhealthy() = %+v", r)
	}
}

func TestAggregator_Check(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(NewCheckerFunc("store", func(ctx context.Context) Result {
		return Healthy("ok")
	}))

	result, err := agg.Check(context.Background(), "store")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy", result.Status)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("missing checker error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(NewCheckerFunc("a", func(ctx context.Context) Result {
		return Healthy("ok")
	}))
	agg.Register(NewCheckerFunc("b", func(ctx context.Context) Result {
		return Degraded("slow")
	}))
	agg.Register(NewCheckerFunc("c", func(ctx context.Context) Result {
		return Unhealthy("down", errors.New("boom"))
	}))

	results := agg.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results["a"].Status != StatusHealthy {
		t.Errorf("a = %v", results["a"].Status)
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("b = %v", results["b"].Status)
	}
	if results["c"].Status != StatusUnhealthy {
		t.Errorf("c = %v", results["c"].Status)
	}

	if got := OverallStatus(results); got != StatusUnhealthy {
		t.Errorf("overall = %v, want unhealthy", got)
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	agg := NewAggregator(time.Second)
	results := agg.CheckAll(context.Background())
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	if got := OverallStatus(results); got != StatusHealthy {
		t.Errorf("overall of empty set = %v, want healthy", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(50 * time.Millisecond)
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		select {
		case <-ctx.Done():
			return Unhealthy("timed out", ctx.Err())
		case <-time.After(5 * time.Second):
			return Healthy("ok")
		}
	}))

	start := time.Now()
	result, err := agg.Check(context.Background(), "slow")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("check did not honor the aggregator timeout")
	}
	if result.Status != StatusUnhealthy {
		t.Errorf("status = %v, want unhealthy", result.Status)
	}
}

type fakeJanitor struct {
	last     time.Time
	interval time.Duration
}

func (f *fakeJanitor) LastSweep() time.Time    { return f.last }
func (f *fakeJanitor) Interval() time.Duration { return f.interval }

func TestJanitorChecker(t *testing.T) {
	tests := []struct {
		name string
		last time.Time
		want Status
	}{
		{"never run", time.Time{}, StatusHealthy},
		{"recent sweep", time.Now().Add(-30 * time.Second), StatusHealthy},
		{"stalled sweep", time.Now().Add(-5 * time.Minute), StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewJanitorChecker(&fakeJanitor{last: tt.last, interval: time.Minute})
			result := checker.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("status = %v, want %v", result.Status, tt.want)
			}
		})
	}

	if got := NewJanitorChecker(&fakeJanitor{}).Name(); got != "sweep" {
		t.Errorf("name = %q", got)
	}
}
