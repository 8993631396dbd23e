// Package virtual derives synthetic day events: closures for working days
// that ended without a contribution, and activity ticks that bridge
// already-checkpointed days when a cached projection lags the cutoff.
//
// Everything here is pure. The tick synthesizer receives its
// checkpointed-post counts through an injected lookup so all I/O stays with
// the orchestrator.
package virtual

import (
	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
)

// Closures derives virtual day-closed events for every working day after
// startExclusive through endInclusive that has no coverage in eventsByDay.
// A day is covered by a qualifying post, an activity tick, or an existing
// day-closed marker; covered days get no closure.
//
// Malformed day keys, an inverted range, or an unresolvable timezone yield
// an empty result. start == end yields an empty result.
func Closures(startExclusive, endInclusive string, eventsByDay map[string][]event.Event, tz string, cal *calendar.Calendar) []event.Event {
	loc, ok := calendar.Location(tz)
	if !ok {
		return nil
	}
	var closures []event.Event
	for _, day := range calendar.Range(startExclusive, endInclusive) {
		if !cal.IsWorkingDay(day) {
			continue
		}
		if dayCovered(eventsByDay[day]) {
			continue
		}
		closures = append(closures, event.NewVirtualClosure(day, calendar.EndOfDay(day, loc)))
	}
	return closures
}

// dayCovered reports whether the day's events already settle it: any
// contribution, or a closure marker that is already present.
func dayCovered(events []event.Event) bool {
	for _, e := range events {
		if e.IsContribution() || e.IsDayClosure() {
			return true
		}
	}
	return false
}
