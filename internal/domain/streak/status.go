// Package streak implements the streak state machine: the projection read
// model and the pure reducer that folds ordered events onto it.
package streak

import "time"

// StatusKind names a status variant.
type StatusKind string

const (
	// StatusOnStreak means the streak is intact.
	StatusOnStreak StatusKind = "on_streak"
	// StatusEligible means a miss opened a bounded recovery window.
	StatusEligible StatusKind = "eligible"
	// StatusMissed means the streak is lost.
	StatusMissed StatusKind = "missed"
)

// Status is the projection status, a closed sum of OnStreak, Eligible and
// Missed. Modeling it as a sum keeps states like "posts required while on
// streak" unrepresentable.
type Status interface {
	Kind() StatusKind
	isStatus()
}

// OnStreak is the intact-streak status.
type OnStreak struct{}

// Eligible is the recovery-window status opened by a missed working day.
type Eligible struct {
	// PostsRequired is the recovery threshold: 1 for a Friday miss, 2 else.
	PostsRequired int
	// CurrentPosts counts qualifying posts inside the window.
	CurrentPosts int
	// MissedDate is the day key of the missed working day.
	MissedDate string
	// Deadline is the local end of the last day recovery posts count.
	Deadline time.Time
}

// Missed is the lost-streak status.
type Missed struct{}

// Kind implements Status.
func (OnStreak) Kind() StatusKind { return StatusOnStreak }

// Kind implements Status.
func (Eligible) Kind() StatusKind { return StatusEligible }

// Kind implements Status.
func (Missed) Kind() StatusKind { return StatusMissed }

func (OnStreak) isStatus() {}
func (Eligible) isStatus() {}
func (Missed) isStatus()   {}

// statusEqual compares two statuses by value, treating deadlines as instants.
func statusEqual(a, b Status) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	ea, okA := a.(Eligible)
	eb, okB := b.(Eligible)
	if !okA || !okB {
		return true // OnStreak and Missed carry no fields
	}
	return ea.PostsRequired == eb.PostsRequired &&
		ea.CurrentPosts == eb.CurrentPosts &&
		ea.MissedDate == eb.MissedDate &&
		ea.Deadline.Equal(eb.Deadline)
}
