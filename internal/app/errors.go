package service

import "errors"

// Sentinel kinds for orchestrator errors.
var (
	// ErrNotStarted is returned when an operation runs before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrStoreUnavailable wraps event store or projection cache failures.
	// The orchestrator does not retry; the caller owns retry policy.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvariantViolation is returned under strict mode when a computation
	// detects a programming error (double tick, checkpoint regression,
	// non-deterministic replay). Nothing is written.
	ErrInvariantViolation = errors.New("invariant violation")
)
