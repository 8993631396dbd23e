// Package repository defines the streak leaderboard store interface and errors.
package repository

import "context"

// Entry represents a leaderboard row.
type Entry struct {
	Rank          int
	UserID        string
	CurrentStreak int
	LongestStreak int
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Update replaces the streak values for a user. Returns true if the
	// store changed as a result, false if the values were already current.
	Update(ctx context.Context, userID string, currentStreak, longestStreak int) (bool, error)

	// Rank returns the current rank and streak values for a user.
	// Returns ErrNotFound if the user is unknown.
	Rank(ctx context.Context, userID string) (Entry, error)

	// TopN returns the top-N entries ordered by current streak desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of users tracked in the leaderboard.
	Count(ctx context.Context) int
}
