package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// KeyFunc derives a limiter key from inbound request metadata.
type KeyFunc func(r *http.Request) string

// MiddlewareOptions configures the HTTP glue around a Limiter.
type MiddlewareOptions struct {
	// Limiter makes the decisions. Required.
	Limiter *Limiter

	// Quota overrides the limiter's default quota for this route. Zero
	// fields fall back to the limiter defaults.
	Quota Config

	// Discriminator is appended to the derived origin so different
	// endpoint classes get independent windows.
	Discriminator string

	// KeyFn overrides identity derivation entirely. When nil, a default
	// derivation from KeyHeader / X-Forwarded-For / RemoteAddr is used.
	KeyFn KeyFunc

	// KeyHeader names a header carrying the client identity (e.g. an API
	// key header) consulted before falling back to the network origin.
	KeyHeader string

	// TrustXForwardedFor takes the first X-Forwarded-For hop as the
	// origin. Only enable behind a trusted proxy.
	TrustXForwardedFor bool
}

// DefaultKeyFunc derives the client's network origin, preferring keyHeader,
// then the first X-Forwarded-For hop when trusted, then RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				// First hop is the original client
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// rejection is the machine-readable 429 body.
type rejection struct {
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

// Middleware enforces the quota before the wrapped handler runs. Every
// response carries X-RateLimit-Limit / -Remaining / -Reset; rejections add
// Retry-After and a JSON body with retry timing.
func Middleware(opts MiddlewareOptions) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Key(opts.KeyFn(r), opts.Discriminator)
			dec := opts.Limiter.Check(r.Context(), key, opts.Quota)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))

			if !dec.Allowed {
				// Ceil so a sub-second wait never rounds to zero
				retrySecs := int64((dec.RetryAfter + time.Second - 1) / time.Second)
				h.Set("Retry-After", strconv.FormatInt(retrySecs, 10))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(rejection{
					Error:        "too many requests",
					RetryAfterMs: dec.RetryAfter.Milliseconds(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
