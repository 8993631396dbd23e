// Package simulate drives the streak service end to end: it generates
// randomized posting calendars, submits them through the HTTP API and
// verifies the returned projections against a locally computed expectation
// using the same pure reducer.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Users    int           // Number of simulated users
	Days     int           // Length of each user's posting calendar
	Workers  int           // Number of concurrent submitters
	Timeout  time.Duration // HTTP request timeout
	Timezone string        // IANA timezone for the simulated users
	Seed     int64         // Seed for reproducible calendars; 0 means time-based
	LogFile  string        // Log file for simulation output
	Verbose  bool          // Enable verbose logging
}

// Event mirrors the POST /events request schema.
type Event struct {
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	Kind          string `json:"kind"`
	OccurredAt    string `json:"occurred_at"`
	PostID        string `json:"post_id,omitempty"`
	BoardID       string `json:"board_id,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
}

// StreakView mirrors the GET /streaks/{user_id} response schema.
type StreakView struct {
	UserID               string `json:"user_id"`
	Status               string `json:"status"`
	CurrentStreak        int    `json:"current_streak"`
	OriginalStreak       int    `json:"original_streak"`
	LongestStreak        int    `json:"longest_streak"`
	LastContributionDate string `json:"last_contribution_date"`
	PostsRequired        int    `json:"posts_required"`
	CurrentPosts         int    `json:"current_posts"`
}

// Entry mirrors a leaderboard row.
type Entry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Seq       uint64 `json:"seq"`
}

// Stats holds simulation statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	UsersVerified    int
	UsersMismatched  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
