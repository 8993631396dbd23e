// Package eventstore defines the append-only per-user event log contract
// and its in-memory and SQLite implementations.
package eventstore

import (
	"context"

	"github.com/inkhq/quill/internal/domain/event"
)

// Store provides append and read access to a per-user event log. Events are
// keyed by an ascending per-user sequence assigned at append time.
type Store interface {
	// Append persists a real event for user, assigning Seq one greater than
	// the prior highest for that user. Returns the stored event with Seq
	// populated. Synthetic kinds are rejected.
	Append(ctx context.Context, userID string, e event.Event) (event.Event, error)

	// ListAfter returns the user's events with seq > after, ascending.
	ListAfter(ctx context.Context, userID string, after uint64) ([]event.Event, error)

	// CountPostsOnDay counts post.created events on dayKey. A maxSeq > 0
	// bounds the count to events with seq <= maxSeq.
	CountPostsOnDay(ctx context.Context, userID, dayKey string, maxSeq uint64) (int, error)

	// LatestSeq returns the highest assigned seq for user, 0 if none.
	LatestSeq(ctx context.Context, userID string) (uint64, error)
}
