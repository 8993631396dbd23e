package eventstore

import "errors"

// Sentinel kinds for event log errors.
var (
	ErrInvalidEvent   = errors.New("invalid event")
	ErrSyntheticEvent = errors.New("synthetic events are never persisted")
	ErrClosed         = errors.New("event store is closed")
)
