package virtual

import (
	"errors"
	"testing"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
)

func countsFrom(posts map[string]int) CountFunc {
	return func(dayKey string) (int, error) {
		return posts[dayKey], nil
	}
}

func TestTicks_BridgesCheckpointedDays(t *testing.T) {
	cal := calendar.New()

	// Monday had two checkpointed posts, Tuesday was silent, Wednesday is
	// covered by the delta and must be left alone.
	delta := map[string][]event.Event{
		"2025-10-15": {{Seq: 9, Kind: event.KindPostCreated, DayKey: "2025-10-15"}},
	}
	counts := countsFrom(map[string]int{"2025-10-13": 2})

	got, err := Ticks("2025-10-12", "2025-10-15", delta, counts, "UTC", cal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 synthetic events, got %d: %+v", len(got), got)
	}

	if got[0].Kind != event.KindDayActivity || got[0].DayKey != "2025-10-13" || got[0].PostsCount != 2 {
		t.Errorf("unexpected tick for checkpointed day: %+v", got[0])
	}
	if got[1].Kind != event.KindDayClosedVirtual || got[1].DayKey != "2025-10-14" {
		t.Errorf("unexpected closure for silent day: %+v", got[1])
	}
	for i, e := range got {
		if e.Seq != 0 {
			t.Errorf("synthetic event %d carries a sequence number", i)
		}
	}
}

func TestTicks_SkipsNonWorkingDays(t *testing.T) {
	cal := calendar.New(calendar.WithHolidays("2025-10-20"))

	// Friday through the next Tuesday: weekend and holiday Monday skipped.
	got, err := Ticks("2025-10-17", "2025-10-21", nil, countsFrom(nil), "UTC", cal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].DayKey != "2025-10-21" {
		t.Errorf("expected only the Tuesday closure, got %+v", got)
	}
}

func TestTicks_PropagatesLookupErrors(t *testing.T) {
	cal := calendar.New()
	lookupErr := errors.New("storage down")
	failing := func(dayKey string) (int, error) { return 0, lookupErr }

	_, err := Ticks("2025-10-12", "2025-10-14", nil, failing, "UTC", cal)
	if !errors.Is(err, lookupErr) {
		t.Errorf("expected wrapped lookup error, got %v", err)
	}
}

func TestTicks_DegenerateInput(t *testing.T) {
	cal := calendar.New()

	got, err := Ticks("2025-10-13", "2025-10-13", nil, countsFrom(nil), "UTC", cal)
	if err != nil || got != nil {
		t.Errorf("equal bounds should yield nothing, got %v, %v", got, err)
	}

	got, err = Ticks("2025-10-13", "2025-10-15", nil, countsFrom(nil), "Not/AZone", cal)
	if err != nil || got != nil {
		t.Errorf("unresolvable timezone should yield nothing, got %v, %v", got, err)
	}
}
