package streak_test

import (
	"testing"
	"time"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
	"github.com/inkhq/quill/internal/domain/streak"
	"github.com/smartystreets/goconvey/convey"
)

// Week under test: 2025-10-13 is a Monday, 2025-10-17 a Friday,
// 2025-10-18/19 the weekend.
const (
	monday    = "2025-10-13"
	tuesday   = "2025-10-14"
	wednesday = "2025-10-15"
	thursday  = "2025-10-16"
	friday    = "2025-10-17"
	saturday  = "2025-10-18"
	nextMon   = "2025-10-20"
)

func post(seq uint64, day string) streak.Event {
	return streak.Event{
		Seq:        seq,
		Kind:       event.KindPostCreated,
		DayKey:     day,
		OccurredAt: calendar.StartOfDay(day, time.UTC).Add(10 * time.Hour),
	}
}

func closure(day string) streak.Event {
	return event.NewVirtualClosure(day, calendar.EndOfDay(day, time.UTC))
}

func TestReduce_MissAndRecovery(t *testing.T) {
	convey.Convey("Given a user on a settled streak", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        5,
			OriginalStreak:       5,
			LongestStreak:        5,
			LastContributionDate: monday,
			Version:              streak.RulesVersion,
		}

		convey.Convey("When a silent working day closes", func() {
			next := streak.Reduce(state, []streak.Event{closure(tuesday)}, time.UTC)

			convey.Convey("Then a recovery window opens with the weekday threshold", func() {
				el, ok := next.Status.(streak.Eligible)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(el.PostsRequired, convey.ShouldEqual, 2)
				convey.So(el.CurrentPosts, convey.ShouldEqual, 0)
				convey.So(el.MissedDate, convey.ShouldEqual, tuesday)
				convey.So(el.Deadline, convey.ShouldResemble, calendar.EndOfDay(wednesday, time.UTC))
				convey.So(next.CurrentStreak, convey.ShouldEqual, 0)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the miss is recovered with two posts the next day", func() {
			events := []streak.Event{
				closure(tuesday),
				post(10, wednesday),
				post(11, wednesday),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the streak settles at original plus two", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 7)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 7)
				convey.So(next.LongestStreak, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When only one recovery post lands before the deadline closes", func() {
			events := []streak.Event{
				closure(tuesday),
				post(10, wednesday),
				closure(wednesday),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the streak restarts at one", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 1)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 1)
				convey.So(next.LongestStreak, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the recovery window lapses with no posts", func() {
			events := []streak.Event{
				closure(tuesday),
				closure(wednesday),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the streak is lost", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusMissed)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 0)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 0)
				convey.So(next.LongestStreak, convey.ShouldEqual, 5)
			})
		})
	})
}

func TestReduce_FridayMiss(t *testing.T) {
	convey.Convey("Given a user on a streak whose last post was Thursday", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        5,
			OriginalStreak:       5,
			LongestStreak:        5,
			LastContributionDate: thursday,
			Version:              streak.RulesVersion,
		}

		convey.Convey("When Friday closes silent", func() {
			next := streak.Reduce(state, []streak.Event{closure(friday)}, time.UTC)

			convey.Convey("Then the window needs only one post and ends Saturday", func() {
				el, ok := next.Status.(streak.Eligible)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(el.PostsRequired, convey.ShouldEqual, 1)
				convey.So(el.MissedDate, convey.ShouldEqual, friday)
				convey.So(el.Deadline, convey.ShouldResemble, calendar.EndOfDay(saturday, time.UTC))
			})
		})

		convey.Convey("When a single Saturday post recovers the Friday miss", func() {
			events := []streak.Event{
				closure(friday),
				post(10, saturday),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the streak settles at original plus one", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 6)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 6)
			})
		})
	})
}

func TestReduce_WeekendsNeverPenalize(t *testing.T) {
	convey.Convey("Given a user on a streak going into the weekend", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        3,
			OriginalStreak:       3,
			LongestStreak:        3,
			LastContributionDate: friday,
			Version:              streak.RulesVersion,
		}

		convey.Convey("When silent weekend days close", func() {
			events := []streak.Event{
				closure(saturday),
				closure("2025-10-19"),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the projection is unchanged", func() {
				convey.So(next.Equal(state), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the following Monday also closes silent", func() {
			events := []streak.Event{
				closure(saturday),
				closure("2025-10-19"),
				closure(nextMon),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then only the Monday opens a window", func() {
				el, ok := next.Status.(streak.Eligible)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(el.MissedDate, convey.ShouldEqual, nextMon)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 3)
			})
		})
	})
}

func TestReduce_SameDayTransitions(t *testing.T) {
	convey.Convey("Given a user with a lost streak", t, func() {
		state := streak.Initial()

		convey.Convey("When a single post lands", func() {
			next := streak.Reduce(state, []streak.Event{post(1, monday)}, time.UTC)

			convey.Convey("Then a same-day window opens", func() {
				el, ok := next.Status.(streak.Eligible)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(el.PostsRequired, convey.ShouldEqual, 2)
				convey.So(el.CurrentPosts, convey.ShouldEqual, 1)
				convey.So(el.MissedDate, convey.ShouldEqual, monday)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When two posts land on the same day", func() {
			events := []streak.Event{post(1, monday), post(2, monday)}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the streak rebuilds directly to two", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 2)
				convey.So(next.OriginalStreak, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When one post lands and the day closes", func() {
			events := []streak.Event{post(1, monday), closure(monday)}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the streak starts at one", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestReduce_NoCrossDayCompounding(t *testing.T) {
	convey.Convey("Given a user on a settled streak", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        4,
			OriginalStreak:       4,
			LongestStreak:        4,
			LastContributionDate: monday,
			Version:              streak.RulesVersion,
		}

		convey.Convey("When posts land on consecutive working days", func() {
			events := []streak.Event{
				post(10, tuesday),
				closure(tuesday),
				post(11, wednesday),
				closure(wednesday),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then the settled streak value does not compound", func() {
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 4)
				convey.So(next.LastContributionDate, convey.ShouldEqual, wednesday)
			})
		})
	})
}

func TestReduce_AuditKindsHaveNoStreakEffect(t *testing.T) {
	convey.Convey("Given a user on a settled streak", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        2,
			OriginalStreak:       2,
			LongestStreak:        2,
			LastContributionDate: monday,
			AppliedSeq:           5,
			Version:              streak.RulesVersion,
		}

		convey.Convey("When deletion and timezone events are folded", func() {
			events := []streak.Event{
				{Seq: 6, Kind: event.KindPostDeleted, DayKey: tuesday, OccurredAt: calendar.StartOfDay(tuesday, time.UTC)},
				{Seq: 7, Kind: event.KindTimezoneChanged, DayKey: tuesday, OccurredAt: calendar.StartOfDay(tuesday, time.UTC), OldTimezone: "UTC", NewTimezone: "Asia/Tokyo"},
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then only the checkpoint advances", func() {
				convey.So(next.AppliedSeq, convey.ShouldEqual, 7)
				convey.So(next.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(next.CurrentStreak, convey.ShouldEqual, 2)
				convey.So(next.LastContributionDate, convey.ShouldEqual, monday)
			})
		})
	})
}

func TestReduce_CheckpointSemantics(t *testing.T) {
	convey.Convey("Given an empty projection", t, func() {
		state := streak.Initial()

		convey.Convey("When real and synthetic events are folded together", func() {
			events := []streak.Event{
				post(3, monday),
				closure(monday),
				closure(tuesday),
			}
			next := streak.Reduce(state, events, time.UTC)

			convey.Convey("Then synthetic events never move the checkpoint", func() {
				convey.So(next.AppliedSeq, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When folding the empty batch", func() {
			next := streak.Reduce(state, nil, time.UTC)

			convey.Convey("Then the projection is returned unchanged", func() {
				convey.So(next.Equal(state), convey.ShouldBeTrue)
			})
		})
	})
}

func TestReduce_FoldProperties(t *testing.T) {
	convey.Convey("Given a multi-day event history", t, func() {
		state := streak.Initial()
		events := []streak.Event{
			post(1, monday),
			post(2, monday),
			closure(monday),
			closure(tuesday),
			post(3, wednesday),
			post(4, wednesday),
			closure(wednesday),
			post(5, thursday),
			closure(thursday),
			closure(friday),
			post(6, saturday),
		}

		convey.Convey("Then folding is deterministic", func() {
			a := streak.Reduce(state, events, time.UTC)
			b := streak.Reduce(state, events, time.UTC)
			convey.So(a.Equal(b), convey.ShouldBeTrue)
		})

		convey.Convey("Then folding a split batch equals folding the whole", func() {
			whole := streak.Reduce(state, events, time.UTC)
			for split := 0; split <= len(events); split++ {
				mid := streak.Reduce(state, events[:split], time.UTC)
				parts := streak.Reduce(mid, events[split:], time.UTC)
				convey.So(parts.Equal(whole), convey.ShouldBeTrue)
			}
		})
	})

	convey.Convey("Given a recovery window that lapses with no closure folded", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        4,
			OriginalStreak:       4,
			LongestStreak:        4,
			LastContributionDate: thursday,
			Version:              streak.RulesVersion,
		}
		// The Friday miss opens a window ending Saturday; nothing arrives
		// until two posts the following Monday.
		events := []streak.Event{
			closure(friday),
			post(7, nextMon),
			post(8, nextMon),
		}

		convey.Convey("Then the late posts rebuild the streak from scratch", func() {
			whole := streak.Reduce(state, events, time.UTC)
			convey.So(whole.Status.Kind(), convey.ShouldEqual, streak.StatusOnStreak)
			convey.So(whole.CurrentStreak, convey.ShouldEqual, 2)
			convey.So(whole.LongestStreak, convey.ShouldEqual, 4)
		})

		convey.Convey("Then folding a split batch equals folding the whole", func() {
			whole := streak.Reduce(state, events, time.UTC)
			for split := 0; split <= len(events); split++ {
				mid := streak.Reduce(state, events[:split], time.UTC)
				parts := streak.Reduce(mid, events[split:], time.UTC)
				convey.So(parts.Equal(whole), convey.ShouldBeTrue)
			}
		})
	})
}

func TestReduceWithTrace(t *testing.T) {
	convey.Convey("Given a history with a miss and recovery", t, func() {
		state := streak.Projection{
			Status:               streak.OnStreak{},
			CurrentStreak:        5,
			OriginalStreak:       5,
			LongestStreak:        5,
			LastContributionDate: monday,
			Version:              streak.RulesVersion,
		}
		events := []streak.Event{
			closure(tuesday),
			post(10, wednesday),
			post(11, wednesday),
		}

		convey.Convey("When folding with a trace", func() {
			traced, steps := streak.ReduceWithTrace(state, events, time.UTC)

			convey.Convey("Then the trace matches the bulk fold", func() {
				bulk := streak.Reduce(state, events, time.UTC)
				convey.So(traced.Equal(bulk), convey.ShouldBeTrue)
			})

			convey.Convey("Then each event yields one step", func() {
				convey.So(len(steps), convey.ShouldEqual, 3)
			})

			convey.Convey("Then the steps record the status transitions", func() {
				convey.So(steps[0].FromStatus, convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(steps[0].ToStatus, convey.ShouldEqual, streak.StatusEligible)
				convey.So(steps[0].Synthetic, convey.ShouldBeTrue)

				convey.So(steps[2].FromStatus, convey.ShouldEqual, streak.StatusEligible)
				convey.So(steps[2].ToStatus, convey.ShouldEqual, streak.StatusOnStreak)
				convey.So(steps[2].StreakDelta, convey.ShouldEqual, 7)
				convey.So(steps[2].Synthetic, convey.ShouldBeFalse)
			})
		})
	})
}
