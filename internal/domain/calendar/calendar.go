// Package calendar provides day-key arithmetic and the working-day oracle.
//
// A day key is a calendar date string (YYYY-MM-DD) in the user's local
// timezone. All functions here are total: malformed input yields zero values
// or "not a working day", never a panic or an error the caller must branch on.
package calendar

import (
	"time"
)

// DayKeyLayout is the time layout for day keys.
const DayKeyLayout = "2006-01-02"

// endOfDayOffset positions synthetic day events at 23:59:59.999 local time.
const endOfDayOffset = 24*time.Hour - time.Millisecond

// Calendar answers working-day questions: weekend rule plus an injectable
// holiday set. The zero value (or a nil pointer) applies weekday-only logic.
type Calendar struct {
	holidays map[string]struct{}
}

// Option applies a configuration option to the Calendar.
type Option func(*Calendar)

// WithHolidays registers day keys that are never working days.
func WithHolidays(days ...string) Option {
	return func(c *Calendar) {
		if c.holidays == nil {
			c.holidays = make(map[string]struct{}, len(days))
		}
		for _, d := range days {
			c.holidays[d] = struct{}{}
		}
	}
}

// New constructs a Calendar with configuration options.
func New(opts ...Option) *Calendar {
	c := &Calendar{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsWorkingDay reports whether dayKey is neither weekend nor holiday.
// Malformed day keys are not working days.
func (c *Calendar) IsWorkingDay(dayKey string) bool {
	wd, ok := Weekday(dayKey)
	if !ok {
		return false
	}
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if c != nil && c.holidays != nil {
		if _, holiday := c.holidays[dayKey]; holiday {
			return false
		}
	}
	return true
}

// DayKey formats t as a day key in loc. A nil location falls back to UTC.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayKeyLayout)
}

// Weekday returns the weekday of dayKey. ok is false for malformed keys.
func Weekday(dayKey string) (time.Weekday, bool) {
	t, err := time.Parse(DayKeyLayout, dayKey)
	if err != nil {
		return time.Sunday, false
	}
	return t.Weekday(), true
}

// StartOfDay returns midnight of dayKey in loc, or the zero time for
// malformed keys. A nil location falls back to UTC.
func StartOfDay(dayKey string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayKeyLayout, dayKey, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EndOfDay returns 23:59:59.999 of dayKey in loc, or the zero time for
// malformed keys.
func EndOfDay(dayKey string, loc *time.Location) time.Time {
	start := StartOfDay(dayKey, loc)
	if start.IsZero() {
		return time.Time{}
	}
	return start.Add(endOfDayOffset)
}

// NextDay returns the day key following dayKey, or "" for malformed keys.
func NextDay(dayKey string) string {
	t, err := time.Parse(DayKeyLayout, dayKey)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format(DayKeyLayout)
}

// PrevDay returns the day key preceding dayKey, or "" for malformed keys.
func PrevDay(dayKey string) string {
	t, err := time.Parse(DayKeyLayout, dayKey)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DayKeyLayout)
}

// Range returns the day keys after startExclusive through endInclusive,
// ascending. Malformed keys or an inverted range yield an empty result.
func Range(startExclusive, endInclusive string) []string {
	start, err := time.Parse(DayKeyLayout, startExclusive)
	if err != nil {
		return nil
	}
	end, err := time.Parse(DayKeyLayout, endInclusive)
	if err != nil {
		return nil
	}
	if !end.After(start) {
		return nil
	}
	var days []string
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayKeyLayout))
	}
	return days
}

// Location resolves an IANA timezone name, falling back to UTC for
// malformed names. The boolean reports whether the name resolved.
func Location(name string) (*time.Location, bool) {
	if name == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}
