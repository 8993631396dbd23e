package streak

import (
	"time"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
)

// Event is the folded event type, real or synthetic.
type Event = event.Event

// Recovery thresholds. A Friday miss only needs one post because the
// recovery deadline lands on Saturday, a non-working day.
const (
	recoveryPostsFridayMiss  = 1
	recoveryPostsWeekdayMiss = 2
)

// scratch accumulates per-invocation fold state. It is created inside
// Reduce and never shared, which keeps the fold referentially transparent.
type scratch struct {
	// postsByDay counts qualifying posts folded per day key across the
	// batch, including posts consumed by a lapsed-window transition.
	postsByDay map[string]int
}

func newScratch() *scratch {
	return &scratch{postsByDay: make(map[string]int)}
}

// Reduce folds events left-to-right onto state and returns the resulting
// projection. It is pure and associative: folding a batch equals folding any
// split of it in order, which is what makes cache extension safe.
//
// Events must be ordered by (dayKey, occurredAt) with synthetic day events
// after the real events of their day. The timezone resolves day boundaries
// for recovery deadlines; nil falls back to UTC.
func Reduce(state Projection, events []Event, loc *time.Location) Projection {
	if loc == nil {
		loc = time.UTC
	}
	sc := newScratch()
	for _, e := range events {
		state = apply(state, sc, e, loc)
	}
	return state
}

// Step records one event application for the explain trace.
type Step struct {
	// Event is the folded event, real or synthetic.
	Event Event
	// Before and After snapshot the projection around the application.
	Before Projection
	After  Projection
	// FromStatus and ToStatus name the status transition.
	FromStatus StatusKind
	ToStatus   StatusKind
	// StreakDelta is After.CurrentStreak - Before.CurrentStreak.
	StreakDelta int
	// Synthetic marks derived events (virtual closures, activity ticks).
	Synthetic bool
}

// ReduceWithTrace folds events one at a time, capturing a Step per event.
// The final projection is identical to Reduce over the same input.
func ReduceWithTrace(state Projection, events []Event, loc *time.Location) (Projection, []Step) {
	if loc == nil {
		loc = time.UTC
	}
	sc := newScratch()
	steps := make([]Step, 0, len(events))
	for _, e := range events {
		before := state
		state = apply(state, sc, e, loc)
		steps = append(steps, Step{
			Event:       e,
			Before:      before,
			After:       state,
			FromStatus:  before.Status.Kind(),
			ToStatus:    state.Status.Kind(),
			StreakDelta: state.CurrentStreak - before.CurrentStreak,
			Synthetic:   e.Kind.IsSynthetic(),
		})
	}
	return state, steps
}

// apply folds a single event. Every branch advances the checkpoint for real
// events; synthetic events carry Seq == 0 and never regress it.
func apply(p Projection, sc *scratch, e Event, loc *time.Location) Projection {
	switch e.Kind {
	case event.KindPostCreated:
		p = applyPost(p, sc, e.DayKey, loc)
	case event.KindDayActivity:
		for i := 0; i < e.PostsCount; i++ {
			p = applyPost(p, sc, e.DayKey, loc)
		}
	case event.KindDayClosed, event.KindDayClosedVirtual:
		p = applyClosure(p, e.DayKey, loc)
	case event.KindPostDeleted, event.KindTimezoneChanged:
		// Audit only under the current rules version.
	}
	if e.Seq > p.AppliedSeq {
		p.AppliedSeq = e.Seq
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	return p
}

// applyPost folds one qualifying contribution on day.
func applyPost(p Projection, sc *scratch, day string, loc *time.Location) Projection {
	sc.postsByDay[day]++
	p.LastContributionDate = day

	switch st := p.Status.(type) {
	case Eligible:
		deadlineDay := calendar.DayKey(st.Deadline, loc)
		if day <= deadlineDay {
			st.CurrentPosts++
			if st.CurrentPosts < st.PostsRequired {
				p.Status = st
				return p
			}
			// Window met: settle back on streak.
			if day == st.MissedDate {
				// Same-day recovery: the miss and the fix inside one
				// calendar day restores full continuity.
				p.CurrentStreak = p.OriginalStreak + 2
			} else {
				p.CurrentStreak = p.OriginalStreak + missIncrement(st.MissedDate)
			}
			p.OriginalStreak = p.CurrentStreak
			p.Status = OnStreak{}
			return p
		}
		// The window lapsed but no closure was folded for it yet.
		if st.CurrentPosts > 0 {
			p.CurrentStreak = 1
			p.OriginalStreak = 1
			p.Status = OnStreak{}
			return p
		}
		// Nothing arrived in the window: settle to missed, then fold this
		// post against it so the rebuild window is carried in state and a
		// recomputation split anywhere folds to the same result.
		p.CurrentStreak = 0
		p.OriginalStreak = 0
		p.Status = Missed{}
		return missedPost(p, sc, day, loc)

	case Missed:
		return missedPost(p, sc, day, loc)

	case OnStreak:
		// No cross-day compounding: posting while on streak never
		// increments beyond what a miss/recovery cycle produces.
		return p

	default:
		return p
	}
}

// missedPost folds one post against a missed state: a same-day second post
// rebuilds the streak directly, otherwise a one-day rebuild window opens with
// this post already counted.
func missedPost(p Projection, sc *scratch, day string, loc *time.Location) Projection {
	if sc.postsByDay[day] >= recoveryPostsWeekdayMiss {
		// Same-day rebuild: two posts on the day the miss is detected
		// restore continuity directly, regardless of prior history.
		p.CurrentStreak = 2
		p.OriginalStreak = 2
		p.Status = OnStreak{}
		return p
	}
	p.CurrentStreak = 0
	p.OriginalStreak = 0
	p.Status = Eligible{
		PostsRequired: recoveryPostsWeekdayMiss,
		CurrentPosts:  1,
		MissedDate:    day,
		Deadline:      calendar.EndOfDay(day, loc),
	}
	return p
}

// applyClosure folds a day-closed marker, real or virtual, for day.
func applyClosure(p Projection, day string, loc *time.Location) Projection {
	switch st := p.Status.(type) {
	case Eligible:
		if day != calendar.DayKey(st.Deadline, loc) {
			return p // checkpoint only
		}
		switch {
		case st.CurrentPosts >= st.PostsRequired:
			// Already settled by the post that met the threshold.
		case st.CurrentPosts > 0:
			// Partial recovery: start over.
			p.CurrentStreak = 1
			p.OriginalStreak = 1
			p.Status = OnStreak{}
		default:
			p.CurrentStreak = 0
			p.OriginalStreak = 0
			p.Status = Missed{}
		}
		return p

	case OnStreak:
		wd, ok := calendar.Weekday(day)
		if !ok || wd == time.Saturday || wd == time.Sunday {
			return p // weekends never penalize
		}
		if p.LastContributionDate >= day {
			return p // the day had a contribution
		}
		// A silent working day opens a recovery window ending at the local
		// end of the next calendar day.
		p.OriginalStreak = p.CurrentStreak
		p.CurrentStreak = 0
		p.Status = Eligible{
			PostsRequired: requiredForMiss(day),
			CurrentPosts:  0,
			MissedDate:    day,
			Deadline:      calendar.EndOfDay(calendar.NextDay(day), loc),
		}
		return p

	default:
		return p // checkpoint only
	}
}

// requiredForMiss returns the recovery threshold for a missed day.
func requiredForMiss(day string) int {
	if wd, ok := calendar.Weekday(day); ok && wd == time.Friday {
		return recoveryPostsFridayMiss
	}
	return recoveryPostsWeekdayMiss
}

// missIncrement returns the streak credit for recovering a missed day:
// the missed day plus, for non-Friday misses, the recovery day itself.
func missIncrement(missedDay string) int {
	if wd, ok := calendar.Weekday(missedDay); ok && wd == time.Friday {
		return 1
	}
	return 2
}
