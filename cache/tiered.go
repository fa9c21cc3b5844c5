package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/dashops/observe"
)

// TieredStore layers a volatile tier over an optional durable tier.
//
// Reads hit the volatile tier first and fall back to the durable tier; both
// tiers apply their own age check. Writes go to both tiers, but a durable
// write failure is logged and non-fatal: the store degrades to volatile-only
// caching rather than failing the caller.
type TieredStore struct {
	volatile Store
	durable  Store
	logger   observe.Logger
}

// NewTieredStore combines a volatile and an optional durable tier.
// A nil durable tier yields plain volatile caching. A nil logger is
// replaced with a no-op logger.
func NewTieredStore(volatile, durable Store, logger observe.Logger) *TieredStore {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &TieredStore{
		volatile: volatile,
		durable:  durable,
		logger:   logger,
	}
}

// Get reads volatile-first with durable fallback.
func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := s.volatile.Get(ctx, key); ok {
		return value, true
	}
	if s.durable == nil {
		return nil, false
	}
	return s.durable.Get(ctx, key)
}

// Set writes to both tiers. The durable write is best-effort.
func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, scope string) error {
	if err := s.volatile.Set(ctx, key, value, ttl, scope); err != nil {
		return err
	}
	if s.durable != nil {
		if err := s.durable.Set(ctx, key, value, ttl, scope); err != nil {
			s.logger.Warn(ctx, "durable cache write failed, continuing volatile-only",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	return nil
}

// Delete removes the key from both tiers.
func (s *TieredStore) Delete(ctx context.Context, key string) error {
	if err := s.volatile.Delete(ctx, key); err != nil {
		return err
	}
	if s.durable != nil {
		return s.durable.Delete(ctx, key)
	}
	return nil
}

// InvalidateScope purges the scope from both tiers. Unlike Set, a durable
// failure here is surfaced: a sign-out purge that silently leaves durable
// entries behind would break scope isolation across restarts.
func (s *TieredStore) InvalidateScope(ctx context.Context, scope string) (int, error) {
	dropped, err := s.volatile.InvalidateScope(ctx, scope)
	if err != nil {
		return dropped, err
	}
	if s.durable != nil {
		durableDropped, err := s.durable.InvalidateScope(ctx, scope)
		dropped += durableDropped
		if err != nil {
			return dropped, err
		}
	}
	return dropped, nil
}

// Stats reports the durable tier when one is configured: every Set lands in
// both tiers, so summing would count each entry twice, and after a restart
// the durable tier is the one that still holds the entries. A durable stats
// failure degrades to volatile-only numbers.
func (s *TieredStore) Stats(ctx context.Context, scope string) (Stats, error) {
	volatileStats, err := s.volatile.Stats(ctx, scope)
	if err != nil {
		return Stats{}, err
	}
	if s.durable == nil {
		return volatileStats, nil
	}

	durableStats, err := s.durable.Stats(ctx, scope)
	if err != nil {
		s.logger.Warn(ctx, "durable cache stats unavailable",
			observe.Field{Key: "error", Value: err.Error()},
		)
		return volatileStats, nil
	}
	return durableStats, nil
}

// Ensure TieredStore implements Store
var _ Store = (*TieredStore)(nil)
