// Package sweep runs the periodic cleanup that bounds memory held by the
// cache store and the rate limiter. It is purely an optimization: every
// read path applies its own expiry check, so no correctness property
// depends on the sweep's cadence.
package sweep
