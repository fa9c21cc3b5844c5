package fetch

import "errors"

// Sentinel errors for fetch operations.
var (
	// ErrNilLoader is returned when a fetch is attempted with no loader.
	ErrNilLoader = errors.New("fetch: loader is nil")

	// ErrNilStore is returned when an orchestrator is built without a store.
	ErrNilStore = errors.New("fetch: store is nil")

	// ErrTimeout is returned when a single loader attempt exceeds its deadline.
	ErrTimeout = errors.New("fetch: loader timed out")
)
