package virtual

import (
	"fmt"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
)

// CountFunc looks up the number of already-checkpointed qualifying posts on
// a day. The orchestrator binds it to the event store with the cached
// projection's applied sequence as the upper bound.
type CountFunc func(dayKey string) (int, error)

// Ticks bridges the gap between a cache's last evaluated day and the cutoff
// for working days the freshly loaded delta does not touch. Days with
// checkpointed posts get a DayActivity tick summarizing them; silent days
// get a virtual closure. At most one tick is emitted per day.
//
// Days present in deltaByDay are skipped entirely: their real events are
// folded directly and the closure deriver owns their coverage.
func Ticks(lastEvaluatedExclusive, cutoffInclusive string, deltaByDay map[string][]event.Event, count CountFunc, tz string, cal *calendar.Calendar) ([]event.Event, error) {
	loc, ok := calendar.Location(tz)
	if !ok {
		return nil, nil
	}
	var ticks []event.Event
	for _, day := range calendar.Range(lastEvaluatedExclusive, cutoffInclusive) {
		if !cal.IsWorkingDay(day) {
			continue
		}
		if _, covered := deltaByDay[day]; covered {
			continue
		}
		posts, err := count(day)
		if err != nil {
			return nil, fmt.Errorf("count checkpointed posts on %s: %w", day, err)
		}
		endOfDay := calendar.EndOfDay(day, loc)
		if posts > 0 {
			ticks = append(ticks, event.NewActivityTick(day, endOfDay, posts))
		} else {
			ticks = append(ticks, event.NewVirtualClosure(day, endOfDay))
		}
	}
	return ticks, nil
}
