package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/inkhq/quill/pkg/logger"
)

// Runner configuration constants.
const (
	processingWait       = 5 * time.Second
	percentageMultiplier = 100
	leaderboardTopN      = 10
)

// Run executes the complete simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting streak simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("days", config.Days),
		logger.Int("workers", config.Workers),
		logger.String("timezone", config.Timezone),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate posting calendars
	calendars, events, err := generateCalendars(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("calendar generation failed: %w", err)
	}

	// Step 3: Submit events concurrently
	if err := submitEvents(ctx, config, events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	// Step 4: Wait for recompute workers to drain
	logger.Get().Info(ctx, "waiting for recomputes to settle")
	time.Sleep(processingWait)

	// Step 5: Verify each user's projection against the local expectation
	if err := verifyStreaks(ctx, config, calendars, stats); err != nil {
		return fmt.Errorf("streak verification failed: %w", err)
	}

	// Step 6: Sanity-check the leaderboard ordering
	if err := verifyLeaderboard(ctx, config); err != nil {
		logger.Get().Warn(ctx, "leaderboard verification warning", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	if stats.UsersMismatched > 0 {
		return fmt.Errorf("%d of %d users diverged from the expected projection",
			stats.UsersMismatched, len(calendars))
	}

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != statusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// verifyStreaks fetches every simulated user's projection and compares it
// with the locally computed expectation.
func verifyStreaks(ctx context.Context, config *Config, calendars []UserCalendar, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	now := time.Now()

	for _, uc := range calendars {
		view, err := fetchStreak(ctx, client, config.BaseURL, uc.UserID)
		if err != nil {
			return err
		}

		want := expectedProjection(uc, config.Timezone, now)
		if matches(view, want) {
			stats.UsersVerified++
			continue
		}

		stats.UsersMismatched++
		logger.Get().Error(ctx, "projection mismatch",
			logger.String("userID", uc.UserID),
			logger.String("gotStatus", view.Status),
			logger.String("wantStatus", string(want.Status.Kind())),
			logger.Int("gotStreak", view.CurrentStreak),
			logger.Int("wantStreak", want.CurrentStreak),
			logger.Int("gotLongest", view.LongestStreak),
			logger.Int("wantLongest", want.LongestStreak),
		)
	}

	logger.Get().Info(ctx, "streak verification finished",
		logger.Int("verified", stats.UsersVerified),
		logger.Int("mismatched", stats.UsersMismatched),
	)
	return nil
}

// verifyLeaderboard checks the leaderboard is ordered by current streak desc.
func verifyLeaderboard(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	entries, err := fetchLeaderboard(ctx, client, config.BaseURL, leaderboardTopN)
	if err != nil {
		return err
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CurrentStreak > entries[i-1].CurrentStreak {
			return fmt.Errorf("leaderboard not ordered: entry %d outranks entry %d", i, i-1)
		}
	}
	logger.Get().Info(ctx, "leaderboard ordering verified", logger.Int("entries", len(entries)))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, eventsPerSecond float64

	if stats.EventsSubmitted > 0 {
		successRate = float64(stats.EventsSuccessful) / float64(stats.EventsSubmitted) * percentageMultiplier
	}

	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("usersMismatched", stats.UsersMismatched),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
