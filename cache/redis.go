package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the durable tier. Entries survive process restarts but are
// subject to the same read-time age check as the memory tier: durability is
// about survival across restarts, not extended freshness.
type RedisStore struct {
	client redis.UniversalClient
	policy Policy

	now func() time.Time // overridable in tests
}

// redisEnvelope is the stored representation of one entry. InsertedAt and
// TTL travel with the value so the read side can re-validate age without
// trusting the server clock that set the key expiry.
type redisEnvelope struct {
	Value      []byte        `json:"v"`
	Scope      string        `json:"scope"`
	InsertedAt time.Time     `json:"inserted_at"`
	TTL        time.Duration `json:"ttl"`
}

// NewRedisStore creates a durable store backed by the given redis client.
func NewRedisStore(client redis.UniversalClient, policy Policy) *RedisStore {
	return &RedisStore{
		client: client,
		policy: policy,
		now:    time.Now,
	}
}

// scopeIndexKey names the redis SET holding every key written under scope.
func scopeIndexKey(scope string) string {
	return "cache-scope:" + scope
}

// Get retrieves a value. Returns (nil, false) on miss, expiry, or any redis
// or decoding error; the durable tier degrades to a miss rather than failing
// a read.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil and transport errors alike are a miss
		return nil, false
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}

	if s.now().Sub(env.InsertedAt) > env.TTL {
		// Stale - drop it and its index membership
		pipe := s.client.Pipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, scopeIndexKey(env.Scope), key)
		_, _ = pipe.Exec(ctx)
		return nil, false
	}

	return env.Value, true
}

// Set stores a value with redis-side expiry matching the effective TTL and
// records the key in the scope index so InvalidateScope can find it.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, scope string) error {
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

	raw, err := json.Marshal(redisEnvelope{
		Value:      value,
		Scope:      scope,
		InsertedAt: s.now(),
		TTL:        ttl,
	})
	if err != nil {
		return fmt.Errorf("cache: failed to marshal entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, raw, ttl)
	pipe.SAdd(ctx, scopeIndexKey(scope), key)
	// Keep the index from outliving its scope's longest-lived entry forever.
	pipe.Expire(ctx, scopeIndexKey(scope), s.policy.EffectiveTTL(s.policy.MaxTTL))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: failed to write durable entry: %w", err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete durable entry: %w", err)
	}
	return nil
}

// InvalidateScope removes every key recorded under scope along with the
// index itself. Returns the number of entries dropped.
func (s *RedisStore) InvalidateScope(ctx context.Context, scope string) (int, error) {
	if scope == "" {
		scope = ScopePublic
	}

	index := scopeIndexKey(scope)
	keys, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: failed to read scope index: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	dropped, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: failed to invalidate scope %q: %w", scope, err)
	}
	if err := s.client.Del(ctx, index).Err(); err != nil {
		return int(dropped), fmt.Errorf("cache: failed to drop scope index: %w", err)
	}
	return int(dropped), nil
}

// Stats reports entry counts. For a named scope the count comes from the
// scope index; for the whole store it is the server keyspace size. Sizes are
// not tracked on the durable tier.
func (s *RedisStore) Stats(ctx context.Context, scope string) (Stats, error) {
	if scope != "" {
		n, err := s.client.SCard(ctx, scopeIndexKey(scope)).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("cache: failed to read scope stats: %w", err)
		}
		return Stats{EntryCount: int(n)}, nil
	}

	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("cache: failed to read store stats: %w", err)
	}
	return Stats{EntryCount: int(n)}, nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
