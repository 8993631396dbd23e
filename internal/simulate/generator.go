package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/pkg/logger"
)

// Posting behavior ranges.
const (
	maxPostsPerActiveDay = 3
	minActivityRate      = 0.3
	activityRateSpread   = 0.65
)

// UserCalendar is one user's generated posting history: posts per day key.
type UserCalendar struct {
	UserID     string
	PostsByDay map[string]int
	PostTimes  map[string][]time.Time
}

// generateCalendars builds randomized posting calendars for config.Users
// users over config.Days days ending yesterday (local). Each user gets a
// stable activity rate so the cohort spans reliable daily writers through
// frequent missers.
func generateCalendars(ctx context.Context, config *Config, stats *Stats) ([]UserCalendar, []Event, error) {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible simulation, not crypto

	loc, ok := calendar.Location(config.Timezone)
	if !ok {
		return nil, nil, fmt.Errorf("unknown timezone %q", config.Timezone)
	}

	logger.Get().Info(ctx, "generating posting calendars",
		logger.Int("users", config.Users),
		logger.Int("days", config.Days),
		logger.Any("seed", seed),
	)

	today := calendar.DayKey(time.Now(), loc)
	firstDay := today
	for i := 0; i < config.Days; i++ {
		firstDay = calendar.PrevDay(firstDay)
	}

	calendars := make([]UserCalendar, config.Users)
	var events []Event

	for u := 0; u < config.Users; u++ {
		userID := "sim-" + uuid.New().String()
		activityRate := minActivityRate + rng.Float64()*activityRateSpread

		uc := UserCalendar{
			UserID:     userID,
			PostsByDay: make(map[string]int),
			PostTimes:  make(map[string][]time.Time),
		}

		for day := calendar.NextDay(firstDay); day < today; day = calendar.NextDay(day) {
			if rng.Float64() > activityRate {
				continue
			}
			posts := 1 + rng.Intn(maxPostsPerActiveDay)
			uc.PostsByDay[day] = posts
			for p := 0; p < posts; p++ {
				at := postInstant(rng, day, loc)
				uc.PostTimes[day] = append(uc.PostTimes[day], at)
				events = append(events, Event{
					EventID:       fmt.Sprintf("sim_%s_%s_%d", userID, day, p),
					UserID:        userID,
					Kind:          "post.created",
					OccurredAt:    at.Format(time.RFC3339),
					PostID:        uuid.New().String(),
					BoardID:       "sim-board",
					ContentLength: 100 + rng.Intn(2000),
				})
			}
		}

		calendars[u] = uc
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(events)))

	return calendars, events, nil
}

// postInstant picks a daytime instant on day, local.
func postInstant(rng *rand.Rand, day string, loc *time.Location) time.Time {
	start := calendar.StartOfDay(day, loc)
	// Posts land between 08:00 and 22:59 local.
	hour := 8 + rng.Intn(15)
	minute := rng.Intn(60)
	return start.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}
