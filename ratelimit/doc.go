// Package ratelimit provides a fixed-window request counter keyed by client
// identity, plus net/http middleware translating its decisions into 429
// responses with machine-readable retry information.
//
// Bursts are possible at window boundaries; that is an accepted property of
// the fixed-window algorithm.
package ratelimit
