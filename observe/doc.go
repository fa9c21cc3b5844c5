// Package observe provides structured logging, metrics, and tracing for the
// request governance layer.
//
// It wires zap for logging and OpenTelemetry for metrics and traces, with
// exporter selection (otlp, prometheus, stdout, none) and no-op fallbacks
// for every component.
package observe
