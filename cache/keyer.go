package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Keyer generates deterministic, scope-isolated cache keys.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Isolation: keys for different scopes must never collide.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a cache key from scope, resource name, and request params.
	Key(scope, resource string, params any) (string, error)
}

// ScopedKey namespaces key under scope. An empty scope maps to ScopePublic,
// so unauthenticated data never shares a prefix with any user's data. The
// fetch orchestrator derives every storage key through this, which is what
// keeps one caller's entries unreadable under another caller's scope.
func ScopedKey(scope, key string) string {
	if scope == "" {
		scope = ScopePublic
	}
	return "cache:" + scope + ":" + key
}

// DefaultKeyer generates SHA-256 based scoped cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic scoped cache key.
// Format: cache:<scope>:<resource>:<hash>
// where hash is the first 16 characters of SHA-256(canonical JSON(params)).
func (k *DefaultKeyer) Key(scope, resource string, params any) (string, error) {
	// Canonicalize params to ensure deterministic serialization
	canonical, err := canonicalize(params)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
	}

	// Hash the canonical representation
	hash := sha256.Sum256(canonical)
	hashStr := hex.EncodeToString(hash[:8]) // First 8 bytes = 16 hex chars

	return ScopedKey(scope, resource+":"+hashStr), nil
}

// canonicalize produces a deterministic JSON representation of the params.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	// For maps, sort keys for determinism
	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		// For other types, use standard JSON encoding
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	// Sort keys
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build ordered JSON object
	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		// Key
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		// Value (recursively canonicalize)
		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
