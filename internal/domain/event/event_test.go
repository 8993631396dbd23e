package event

import (
	"testing"
	"time"
)

func TestKindClassification(t *testing.T) {
	cases := []struct {
		kind      Kind
		valid     bool
		synthetic bool
		domain    string
	}{
		{KindPostCreated, true, false, "post"},
		{KindPostDeleted, true, false, "post"},
		{KindTimezoneChanged, true, false, "timezone"},
		{KindDayClosed, true, false, "day"},
		{KindDayClosedVirtual, true, true, "day"},
		{KindDayActivity, true, true, "day"},
		{Kind("bogus"), false, false, "bogus"},
		{Kind(""), false, false, ""},
	}
	for _, tc := range cases {
		if got := tc.kind.IsValid(); got != tc.valid {
			t.Errorf("%q IsValid = %v, want %v", tc.kind, got, tc.valid)
		}
		if got := tc.kind.IsSynthetic(); got != tc.synthetic {
			t.Errorf("%q IsSynthetic = %v, want %v", tc.kind, got, tc.synthetic)
		}
		if got := tc.kind.Domain(); got != tc.domain {
			t.Errorf("%q Domain = %q, want %q", tc.kind, got, tc.domain)
		}
	}
}

func TestIsContribution(t *testing.T) {
	if !(Event{Kind: KindPostCreated}).IsContribution() {
		t.Error("post.created should be a contribution")
	}
	if !(Event{Kind: KindDayActivity, PostsCount: 2}).IsContribution() {
		t.Error("activity tick with posts should be a contribution")
	}
	if (Event{Kind: KindDayActivity, PostsCount: 0}).IsContribution() {
		t.Error("empty activity tick should not be a contribution")
	}
	if (Event{Kind: KindPostDeleted}).IsContribution() {
		t.Error("post.deleted should not be a contribution")
	}
	if (Event{Kind: KindDayClosedVirtual}).IsContribution() {
		t.Error("closures should not be contributions")
	}
}

func TestSyntheticConstructors(t *testing.T) {
	end := time.Date(2025, 10, 13, 23, 59, 59, 999000000, time.UTC)

	c := NewVirtualClosure("2025-10-13", end)
	if c.Kind != KindDayClosedVirtual || c.Seq != 0 {
		t.Errorf("unexpected closure: %+v", c)
	}
	if c.IdempotencyKey != "virtual:2025-10-13:closed" {
		t.Errorf("unexpected idempotency key: %q", c.IdempotencyKey)
	}
	if !c.IsDayClosure() {
		t.Error("virtual closure should close the day")
	}

	tick := NewActivityTick("2025-10-13", end, 3)
	if tick.Kind != KindDayActivity || tick.PostsCount != 3 || tick.Seq != 0 {
		t.Errorf("unexpected tick: %+v", tick)
	}
	if !tick.IsContribution() {
		t.Error("tick with posts should be a contribution")
	}
}

func TestByDay(t *testing.T) {
	events := []Event{
		{Seq: 1, Kind: KindPostCreated, DayKey: "2025-10-13"},
		{Seq: 2, Kind: KindPostCreated, DayKey: "2025-10-14"},
		{Seq: 3, Kind: KindPostCreated, DayKey: "2025-10-13"},
	}

	grouped := ByDay(events)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 days, got %d", len(grouped))
	}
	monday := grouped["2025-10-13"]
	if len(monday) != 2 || monday[0].Seq != 1 || monday[1].Seq != 3 {
		t.Errorf("in-day order not preserved: %+v", monday)
	}

	if got := ByDay(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
