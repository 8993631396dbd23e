// Package event contains the event model shared by the streak engine.
//
// Events come in two flavors. Real events are persisted in the append-only
// log and carry a positive sequence number assigned by storage. Synthetic
// events are manufactured at read time (virtual closures, activity ticks),
// carry Seq == 0 and are never persisted.
package event

import (
	"strings"
	"time"
)

// Kind identifies the kind of a streak event.
type Kind string

// Real event kinds, persisted in the event log.
const (
	// KindPostCreated records a qualifying contribution.
	KindPostCreated Kind = "post.created"
	// KindPostDeleted records a post deletion. Audit only; no streak effect
	// under the current rules version.
	KindPostDeleted Kind = "post.deleted"
	// KindTimezoneChanged records a timezone change. Audit only; no
	// retroactive effect.
	KindTimezoneChanged Kind = "timezone.changed"
	// KindDayClosed is a persisted "day ended" marker written by legacy
	// day-boundary jobs. The reducer treats it like the virtual variant.
	KindDayClosed Kind = "day.closed"
)

// Synthetic event kinds, derived at read time and never persisted.
const (
	// KindDayClosedVirtual marks a working day that ended with zero
	// contributions as of the evaluation cutoff.
	KindDayClosedVirtual Kind = "day.closed_virtual"
	// KindDayActivity summarizes already-checkpointed same-day contributions
	// while bridging a multi-day evaluation gap.
	KindDayActivity Kind = "day.activity"
)

// Event is an immutable fact about a single user's writing activity.
// Kind-specific fields are zero for kinds that do not use them.
type Event struct {
	// Seq is the per-user sequence number, monotonically increasing from 1.
	// Assigned by storage on append; 0 for synthetic events.
	Seq uint64
	// Kind identifies the kind of event.
	Kind Kind
	// OccurredAt is the instant the event happened. Synthetic day events are
	// stamped at local end of day.
	OccurredAt time.Time
	// DayKey is the calendar date of OccurredAt in the user's IANA timezone,
	// formatted as YYYY-MM-DD. The grouping key for all day-based logic.
	DayKey string

	// PostID and BoardID identify the contribution for post events.
	PostID  string
	BoardID string
	// ContentLength is the contribution size in runes (post.created only).
	ContentLength int

	// PostsCount is the summarized contribution count (day.activity only).
	PostsCount int

	// OldTimezone and NewTimezone record a timezone change (audit only).
	OldTimezone string
	NewTimezone string

	// IdempotencyKey deduplicates day-closed markers. Virtual closures carry
	// a deterministic "virtual:<day>:closed" tag.
	IdempotencyKey string
}

// IsValid reports whether the kind is usable.
func (k Kind) IsValid() bool {
	switch k {
	case KindPostCreated, KindPostDeleted, KindTimezoneChanged,
		KindDayClosed, KindDayClosedVirtual, KindDayActivity:
		return true
	}
	return false
}

// Domain returns the domain prefix of the kind (e.g., "post", "day").
func (k Kind) Domain() string {
	if i := strings.IndexByte(string(k), '.'); i >= 0 {
		return string(k[:i])
	}
	return string(k)
}

// IsSynthetic reports whether events of this kind are derived at read time
// and never persisted.
func (k Kind) IsSynthetic() bool {
	return k == KindDayClosedVirtual || k == KindDayActivity
}

// IsContribution reports whether the event carries streak-qualifying
// activity: a real post, or an activity tick with at least one post.
func (e Event) IsContribution() bool {
	switch e.Kind {
	case KindPostCreated:
		return true
	case KindDayActivity:
		return e.PostsCount > 0
	}
	return false
}

// IsDayClosure reports whether the event closes a day, real or virtual.
func (e Event) IsDayClosure() bool {
	return e.Kind == KindDayClosed || e.Kind == KindDayClosedVirtual
}

// NewVirtualClosure builds a synthetic day-closed event for day, stamped at
// the given local end-of-day instant.
func NewVirtualClosure(dayKey string, endOfDay time.Time) Event {
	return Event{
		Kind:           KindDayClosedVirtual,
		OccurredAt:     endOfDay,
		DayKey:         dayKey,
		IdempotencyKey: "virtual:" + dayKey + ":closed",
	}
}

// NewActivityTick builds a synthetic activity summary for day, stamped at
// the given local end-of-day instant.
func NewActivityTick(dayKey string, endOfDay time.Time, postsCount int) Event {
	return Event{
		Kind:       KindDayActivity,
		OccurredAt: endOfDay,
		DayKey:     dayKey,
		PostsCount: postsCount,
	}
}

// ByDay groups events by their day key. Order within a day is preserved.
func ByDay(events []Event) map[string][]Event {
	if len(events) == 0 {
		return nil
	}
	grouped := make(map[string][]Event)
	for _, e := range events {
		grouped[e.DayKey] = append(grouped[e.DayKey], e)
	}
	return grouped
}
