package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the volatile in-memory tier. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	policy  Policy

	now func() time.Time // overridable in tests
}

type memoryEntry struct {
	value      []byte
	scope      string
	insertedAt time.Time
	ttl        time.Duration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// NewMemoryStore creates a new in-memory store with the given policy.
func NewMemoryStore(policy Policy) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		policy:  policy,
		now:     time.Now,
	}
}

// Get retrieves a value from the store. Returns (nil, false) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	// Check expiry
	if entry.expired(s.now()) {
		// Expired - clean up lazily
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// Set stores a value under the given scope. A non-positive TTL is replaced by
// the policy default; if the policy disables caching the value is dropped.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, scope string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if scope == "" {
		scope = ScopePublic
	}

	ttl = s.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	s.entries[key] = &memoryEntry{
		value:      value,
		scope:      scope,
		insertedAt: s.now(),
		ttl:        ttl,
	}
	s.mu.Unlock()

	return nil
}

// Delete removes a value from the store. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// InvalidateScope removes every entry belonging to scope. Entries of other
// scopes are untouched. Returns the number of entries dropped.
func (s *MemoryStore) InvalidateScope(_ context.Context, scope string) (int, error) {
	if scope == "" {
		scope = ScopePublic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, entry := range s.entries {
		if entry.scope == scope {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped, nil
}

// Stats reports live entry count and approximate size, restricted to scope
// when non-empty. Entries that have expired but not yet been swept are not
// counted.
func (s *MemoryStore) Stats(_ context.Context, scope string) (Stats, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for key, entry := range s.entries {
		if scope != "" && entry.scope != scope {
			continue
		}
		if entry.expired(now) {
			continue
		}
		st.EntryCount++
		st.ApproxBytes += int64(len(key) + len(entry.value))
	}
	return st, nil
}

// Purge removes every expired entry and returns how many were dropped.
// Called by the periodic sweep; reads never depend on it having run.
func (s *MemoryStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
