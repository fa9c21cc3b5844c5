// Package fetch orchestrates outbound data loads for the dashboard.
//
// It wraps arbitrary loader functions with cache-first lookup, per-attempt
// timeouts, retry with exponential backoff, single-flight de-duplication of
// concurrent misses, and settle-all batch fan-out.
package fetch
