// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventStorePath is the SQLite file backing the event log. Empty keeps
	// the log in memory.
	EventStorePath string `koanf:"event_store_path"`

	// ProjectionCachePath is the SQLite file backing the projection cache.
	// Empty keeps the cache in memory.
	ProjectionCachePath string `koanf:"projection_cache_path"`

	// DefaultTimezone is the IANA timezone assumed for users without an
	// explicit timezone record.
	DefaultTimezone string `koanf:"default_timezone"`

	// Holidays lists day keys (YYYY-MM-DD) that never count as working days.
	Holidays []string `koanf:"holidays"`

	// StrictInvariants makes invariant violations fatal to the computation
	// instead of log-only. Enable in dev/test, disable in production.
	StrictInvariants bool `koanf:"strict_invariants"`

	// RecomputeQueueSize bounds the in-memory recompute queue.
	RecomputeQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the append idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with defaults. Callers layer file and env values on
// top via Load.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		EventStorePath:      "",
		ProjectionCachePath: "",
		DefaultTimezone:     "UTC",
		StrictInvariants:    false,
		RecomputeQueueSize:  100_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          500_000,
		MaxLeaderboardLimit: 100,
	}
	return c
}
