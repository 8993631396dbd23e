// Package types contains common types used across the application
package types

import "time"

// StreakView is the API projection of a user's streak state.
type StreakView struct {
	UserID               string     `json:"user_id"`
	Status               string     `json:"status"`
	CurrentStreak        int        `json:"current_streak"`
	OriginalStreak       int        `json:"original_streak"`
	LongestStreak        int        `json:"longest_streak"`
	LastContributionDate string     `json:"last_contribution_date,omitempty"`
	PostsRequired        int        `json:"posts_required,omitempty"`
	CurrentPosts         int        `json:"current_posts,omitempty"`
	MissedDate           string     `json:"missed_date,omitempty"`
	Deadline             *time.Time `json:"deadline,omitempty"`
	AppliedSeq           uint64     `json:"applied_seq"`
	LastEvaluatedDayKey  string     `json:"last_evaluated_day_key,omitempty"`
	RulesVersion         string     `json:"rules_version"`
}

// ExplainStep describes one folded event in an explain trace.
type ExplainStep struct {
	Seq         uint64 `json:"seq,omitempty"`
	Kind        string `json:"kind"`
	DayKey      string `json:"day_key"`
	Synthetic   bool   `json:"synthetic"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
	StreakDelta int    `json:"streak_delta"`
}

// Explanation is the full explain response: the trace plus the final state.
type Explanation struct {
	UserID string        `json:"user_id"`
	Steps  []ExplainStep `json:"steps"`
	Result StreakView    `json:"result"`
}

// Entry represents a streak leaderboard entry.
type Entry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}
