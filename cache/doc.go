// Package cache provides scoped, TTL-bounded storage for dashboard data.
//
// It provides a Store interface with volatile (memory) and durable (redis)
// implementations, a TieredStore combining both, scoped key derivation,
// and TTL policies with scope-level invalidation.
package cache
