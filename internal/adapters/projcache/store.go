// Package projcache persists one streak projection document per user with
// full read/replace semantics.
package projcache

import (
	"context"

	"github.com/inkhq/quill/internal/domain/streak"
)

// Store provides read/replace access to cached projections. Absence is an
// explicit outcome, not an error: callers fall back to streak.Initial().
type Store interface {
	// Get returns the cached projection for user. found is false when no
	// document exists.
	Get(ctx context.Context, userID string) (p streak.Projection, found bool, err error)

	// Put replaces the user's projection document.
	Put(ctx context.Context, userID string, p streak.Projection) error
}
