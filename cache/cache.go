package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// ScopePublic marks entries that are not owned by any single user.
const ScopePublic = "public"

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Stats describes the contents of a store, optionally restricted to one scope.
type Stats struct {
	// EntryCount is the number of live entries.
	EntryCount int

	// ApproxBytes is an approximation of the memory held by entry keys and
	// values. It does not account for per-entry bookkeeping overhead.
	ApproxBytes int64
}

// Store is the interface for scoped, TTL-bounded storage.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get should never error; it returns (nil, false) on miss.
// - Expiry: every Get applies the age-vs-TTL check itself, so correctness
//   never depends on a background sweep having run.
type Store interface {
	// Get retrieves a cached value. Returns (nil, false) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value under the given scope. A non-positive TTL is
	// replaced by the store's default policy TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, scope string) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// InvalidateScope removes every entry whose scope matches and returns
	// how many entries were dropped. A scope with no entries is a no-op.
	InvalidateScope(ctx context.Context, scope string) (int, error)

	// Stats reports entry count and approximate size. An empty scope
	// reports on the whole store.
	Stats(ctx context.Context, scope string) (Stats, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
