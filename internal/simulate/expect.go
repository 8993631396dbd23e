package simulate

import (
	"sort"
	"time"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
	"github.com/inkhq/quill/internal/domain/streak"
	"github.com/inkhq/quill/internal/domain/virtual"
)

// expectedProjection replays a user's calendar through the same pure fold
// the service uses: real post events, virtual closures for silent working
// days, reduced from a cold start. The service's answer for the user must
// match this, whatever order its appends and recomputes ran in.
func expectedProjection(uc UserCalendar, tz string, now time.Time) streak.Projection {
	loc, _ := calendar.Location(tz)
	cal := calendar.New()

	today := calendar.DayKey(now, loc)
	cutoff := calendar.PrevDay(today)
	if uc.PostsByDay[today] > 0 {
		cutoff = today
	}

	var posts []event.Event
	for day, times := range uc.PostTimes {
		if day > cutoff {
			continue
		}
		for _, at := range times {
			posts = append(posts, event.Event{
				Kind:       event.KindPostCreated,
				OccurredAt: at,
				DayKey:     day,
			})
		}
	}
	if len(posts) == 0 {
		return streak.Initial()
	}

	earliest := posts[0].DayKey
	for _, p := range posts[1:] {
		if p.DayKey < earliest {
			earliest = p.DayKey
		}
	}

	byDay := event.ByDay(posts)
	closures := virtual.Closures(calendar.PrevDay(earliest), cutoff, byDay, tz, cal)

	merged := append(posts, closures...)
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.DayKey != b.DayKey {
			return a.DayKey < b.DayKey
		}
		if a.Kind.IsSynthetic() != b.Kind.IsSynthetic() {
			return !a.Kind.IsSynthetic()
		}
		return a.OccurredAt.Before(b.OccurredAt)
	})

	return streak.Reduce(streak.Initial(), merged, loc)
}

// matches reports whether the service's view agrees with the local
// expectation on the fields the reducer owns.
func matches(view StreakView, want streak.Projection) bool {
	return view.Status == string(want.Status.Kind()) &&
		view.CurrentStreak == want.CurrentStreak &&
		view.LongestStreak == want.LongestStreak &&
		view.LastContributionDate == want.LastContributionDate
}
