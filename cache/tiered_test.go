package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDurable is a durable-tier stand-in with controllable failures.
type fakeDurable struct {
	mu      sync.Mutex
	entries map[string][]byte
	scopes  map[string]string

	failSet        bool
	failInvalidate bool
	setCalls       int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{
		entries: make(map[string][]byte),
		scopes:  make(map[string]string),
	}
}

var errDurableDown = errors.New("durable tier down")

func (f *fakeDurable) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	return v, ok
}

func (f *fakeDurable) Set(_ context.Context, key string, value []byte, _ time.Duration, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.failSet {
		return errDurableDown
	}
	f.entries[key] = value
	f.scopes[key] = scope
	return nil
}

func (f *fakeDurable) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	delete(f.scopes, key)
	return nil
}

func (f *fakeDurable) InvalidateScope(_ context.Context, scope string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInvalidate {
		return 0, errDurableDown
	}
	dropped := 0
	for key, s := range f.scopes {
		if s == scope {
			delete(f.entries, key)
			delete(f.scopes, key)
			dropped++
		}
	}
	return dropped, nil
}

func (f *fakeDurable) Stats(_ context.Context, scope string) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st Stats
	for key, s := range f.scopes {
		if scope != "" && s != scope {
			continue
		}
		st.EntryCount++
		st.ApproxBytes += int64(len(key) + len(f.entries[key]))
	}
	return st, nil
}

func TestTieredStore_VolatileFirst(t *testing.T) {
	durable := newFakeDurable()
	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)
	ctx := context.Background()

	value := []byte("payload")
	if err := store.Set(ctx, "cache:u1:notes:x", value, time.Minute, "u1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := store.Get(ctx, "cache:u1:notes:x")
	if !ok || !bytes.Equal(got, value) {
		t.Errorf("Get = %q, %v; want %q, true", got, ok, value)
	}
	if durable.setCalls != 1 {
		t.Errorf("durable tier saw %d writes, want 1", durable.setCalls)
	}
}

func TestTieredStore_DurableFallback(t *testing.T) {
	// Simulate a restart: the durable tier has the entry, volatile does not.
	durable := newFakeDurable()
	durable.entries["cache:u1:notes:x"] = []byte("survived")
	durable.scopes["cache:u1:notes:x"] = "u1"

	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)

	got, ok := store.Get(context.Background(), "cache:u1:notes:x")
	if !ok || !bytes.Equal(got, []byte("survived")) {
		t.Errorf("Get = %q, %v; want durable value", got, ok)
	}
}

func TestTieredStore_DurableWriteFailureNonFatal(t *testing.T) {
	durable := newFakeDurable()
	durable.failSet = true

	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)
	ctx := context.Background()

	// A failing durable write must not fail the Set
	if err := store.Set(ctx, "cache:u1:notes:x", []byte("v"), time.Minute, "u1"); err != nil {
		t.Fatalf("Set should degrade to volatile-only, got: %v", err)
	}

	// The volatile tier still serves the value
	if _, ok := store.Get(ctx, "cache:u1:notes:x"); !ok {
		t.Error("volatile tier should hold the value after durable failure")
	}
}

func TestTieredStore_InvalidateScopeBothTiers(t *testing.T) {
	durable := newFakeDurable()
	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)
	ctx := context.Background()

	_ = store.Set(ctx, "cache:u1:notes:x", []byte("v"), time.Minute, "u1")
	_ = store.Set(ctx, "cache:u2:notes:x", []byte("v"), time.Minute, "u2")

	dropped, err := store.InvalidateScope(ctx, "u1")
	if err != nil {
		t.Fatalf("InvalidateScope failed: %v", err)
	}
	// One entry per tier
	if dropped != 2 {
		t.Errorf("InvalidateScope dropped %d, want 2", dropped)
	}
	if _, ok := store.Get(ctx, "cache:u1:notes:x"); ok {
		t.Error("u1 entry should be gone from both tiers")
	}
	if _, ok := store.Get(ctx, "cache:u2:notes:x"); !ok {
		t.Error("u2 entry should survive")
	}
}

func TestTieredStore_InvalidateScopeDurableFailureSurfaces(t *testing.T) {
	durable := newFakeDurable()
	durable.failInvalidate = true
	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)

	_, err := store.InvalidateScope(context.Background(), "u1")
	if !errors.Is(err, errDurableDown) {
		t.Errorf("durable invalidation failure should surface, got: %v", err)
	}
}

func TestTieredStore_NilDurable(t *testing.T) {
	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), nil, nil)
	ctx := context.Background()

	if err := store.Set(ctx, "cache:u1:notes:x", []byte("v"), time.Minute, "u1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := store.Get(ctx, "cache:u1:notes:x"); !ok {
		t.Error("volatile-only store should serve the value")
	}
	if err := store.Delete(ctx, "cache:u1:notes:x"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestTieredStore_StatsCountsEntriesOnce(t *testing.T) {
	durable := newFakeDurable()
	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)
	ctx := context.Background()

	// Set writes to both tiers; the entry must still be counted once
	_ = store.Set(ctx, "cache:u1:notes:x", []byte("v"), time.Minute, "u1")

	st, err := store.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", st.EntryCount)
	}

	// After a restart only the durable tier holds the entry; the count holds
	restarted := NewTieredStore(NewMemoryStore(DefaultPolicy()), durable, nil)
	st, err = restarted.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.EntryCount != 1 {
		t.Errorf("EntryCount after restart = %d, want 1", st.EntryCount)
	}
}

func TestTieredStore_StatsNilDurable(t *testing.T) {
	store := NewTieredStore(NewMemoryStore(DefaultPolicy()), nil, nil)
	ctx := context.Background()

	_ = store.Set(ctx, "cache:u1:notes:x", []byte("v"), time.Minute, "u1")

	st, err := store.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", st.EntryCount)
	}
}
