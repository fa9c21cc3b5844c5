// Package health reports readiness of the governance layer's moving parts:
// the durable cache tier and the cleanup janitor.
package health
