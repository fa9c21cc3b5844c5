package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	// Get on empty store
	val, ok := store.Get(ctx, "nonexistent")
	if ok {
		t.Error("Get on empty store should return ok=false")
	}
	if val != nil {
		t.Error("Get on empty store should return nil value")
	}

	key := "cache:u1:notes:abc"
	value := []byte("note payload")
	if err := store.Set(ctx, key, value, 5*time.Minute, "u1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := store.Get(ctx, key)
	if !ok {
		t.Error("Get after Set should return ok=true")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := store.Get(ctx, key); ok {
		t.Error("Get after Delete should return ok=false")
	}

	// Delete is idempotent
	if err := store.Delete(ctx, "nonexistent"); err != nil {
		t.Errorf("Delete on non-existent key should not error, got: %v", err)
	}
}

func TestMemoryStore_InvalidKey(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	if err := store.Set(ctx, "", []byte("v"), time.Minute, "u1"); err != ErrInvalidKey {
		t.Errorf("Set with empty key: got %v, want ErrInvalidKey", err)
	}
	if err := store.Set(ctx, "bad\nkey", []byte("v"), time.Minute, "u1"); err != ErrInvalidKey {
		t.Errorf("Set with newline key: got %v, want ErrInvalidKey", err)
	}
}

func TestMemoryStore_ExpiryWithoutSweep(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	key := "cache:u1:tasks:abc"
	if err := store.Set(ctx, key, []byte("v"), time.Second, "u1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Still live just inside the TTL
	store.now = func() time.Time { return base.Add(999 * time.Millisecond) }
	if _, ok := store.Get(ctx, key); !ok {
		t.Error("Get before TTL elapsed should hit")
	}

	// Expired: the read itself must treat the entry as absent, no sweep needed
	store.now = func() time.Time { return base.Add(1001 * time.Millisecond) }
	if _, ok := store.Get(ctx, key); ok {
		t.Error("Get after TTL elapsed should miss regardless of sweep")
	}

	// The expired read also dropped the entry
	if store.Len() != 0 {
		t.Errorf("expired entry should be dropped lazily, %d entries remain", store.Len())
	}
}

func TestMemoryStore_ScopeIsolation(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	value := []byte("u1 notes")
	if err := store.Set(ctx, "cache:u1:notes:x", value, time.Second, "u1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "cache:u2:notes:x", []byte("u2 notes"), time.Second, "u2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Invalidating u2 must leave u1 untouched
	dropped, err := store.InvalidateScope(ctx, "u2")
	if err != nil {
		t.Fatalf("InvalidateScope failed: %v", err)
	}
	if dropped != 1 {
		t.Errorf("InvalidateScope dropped %d entries, want 1", dropped)
	}

	got, ok := store.Get(ctx, "cache:u1:notes:x")
	if !ok {
		t.Fatal("u1 entry should survive invalidation of u2")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("u1 entry changed: got %q, want %q", got, value)
	}
	if _, ok := store.Get(ctx, "cache:u2:notes:x"); ok {
		t.Error("u2 entry should be gone")
	}
}

func TestMemoryStore_InvalidateEmptyScope(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())

	dropped, err := store.InvalidateScope(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("InvalidateScope on empty scope should not error, got: %v", err)
	}
	if dropped != 0 {
		t.Errorf("InvalidateScope on empty scope dropped %d, want 0", dropped)
	}
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	store := NewMemoryStore(Policy{DefaultTTL: time.Minute})
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	// Set without explicit TTL uses the policy default
	if err := store.Set(ctx, "cache:public:feed:x", []byte("v"), 0, ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	store.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := store.Get(ctx, "cache:public:feed:x"); !ok {
		t.Error("entry should live for the default TTL")
	}

	store.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := store.Get(ctx, "cache:public:feed:x"); ok {
		t.Error("entry should expire after the default TTL")
	}
}

func TestMemoryStore_Stats(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	_ = store.Set(ctx, "cache:u1:notes:x", []byte("12345"), time.Minute, "u1")
	_ = store.Set(ctx, "cache:u1:tasks:x", []byte("1234567890"), time.Second, "u1")
	_ = store.Set(ctx, "cache:u2:notes:x", []byte("123"), time.Minute, "u2")

	st, err := store.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.EntryCount != 2 {
		t.Errorf("u1 EntryCount = %d, want 2", st.EntryCount)
	}

	all, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if all.EntryCount != 3 {
		t.Errorf("total EntryCount = %d, want 3", all.EntryCount)
	}
	if all.ApproxBytes <= st.ApproxBytes {
		t.Errorf("total ApproxBytes %d should exceed u1's %d", all.ApproxBytes, st.ApproxBytes)
	}

	// Expired entries are not counted even before the sweep runs
	store.now = func() time.Time { return base.Add(2 * time.Second) }
	st, _ = store.Stats(ctx, "u1")
	if st.EntryCount != 1 {
		t.Errorf("u1 EntryCount after expiry = %d, want 1", st.EntryCount)
	}
}

func TestMemoryStore_Purge(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	_ = store.Set(ctx, "cache:u1:a:x", []byte("v"), time.Second, "u1")
	_ = store.Set(ctx, "cache:u1:b:x", []byte("v"), time.Hour, "u1")

	dropped := store.Purge(base.Add(2 * time.Second))
	if dropped != 1 {
		t.Errorf("Purge dropped %d, want 1", dropped)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d entries after purge, want 1", store.Len())
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(DefaultPolicy())
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = store.Set(ctx, "cache:u1:shared:x", []byte("v"), time.Minute, "u1")
				store.Get(ctx, "cache:u1:shared:x")
				if j%10 == 0 {
					_, _ = store.InvalidateScope(ctx, "u1")
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
