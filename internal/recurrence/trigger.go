package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the caller-facing recurrence kind.
type Frequency string

const (
	Once     Frequency = "once"
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Monthly  Frequency = "monthly"
	Weekdays Frequency = "weekdays" // Mon-Fri
	Weekends Frequency = "weekends" // Sat-Sun
)

// ParseFrequency accepts any letter case.
func ParseFrequency(s string) (Frequency, bool) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Once, Daily, Weekly, Monthly, Weekdays, Weekends:
		return f, true
	}
	return "", false
}

// searchHorizon bounds the day-by-day scan in Next. A monthly rule on the
// 31st needs at most two months; a year and a bit covers every rule.
const searchHorizon = 400

var weekdayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Trigger is the compiled, immutable rule describing when a job fires.
// Kind selects which of the remaining fields are meaningful.
type Trigger struct {
	Kind Frequency

	// At is the single instant of a Once trigger.
	At time.Time

	Hour   int
	Minute int

	// Weekday is 0-based with Monday = 0 (Weekly only).
	Weekday int

	// DayOfMonth is 1-31 (Monthly only). Months without that day are skipped.
	DayOfMonth int

	// EndDate is midnight of the last calendar day on which a recurring
	// trigger may fire. Zero means unbounded.
	EndDate time.Time
}

// Next returns the first occurrence strictly after the given instant, or the
// zero time when the trigger has no further occurrence. Recurring rules are
// evaluated in after's location. It satisfies robfig/cron's Schedule.
func (t Trigger) Next(after time.Time) time.Time {
	if t.Kind == Once {
		if t.At.After(after) {
			return t.At
		}
		return time.Time{}
	}

	loc := after.Location()
	y, m, d := after.Date()
	for i := 0; i < searchHorizon; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if !t.EndDate.IsZero() && day.After(dateOf(t.EndDate, loc)) {
			return time.Time{}
		}
		if !t.matches(day) {
			continue
		}
		candidate := time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, loc)
		if candidate.After(after) {
			return candidate
		}
	}
	return time.Time{}
}

// Recurring reports whether the trigger can fire more than once.
func (t Trigger) Recurring() bool {
	return t.Kind != Once
}

func (t Trigger) matches(day time.Time) bool {
	idx := mondayIndex(day.Weekday())
	switch t.Kind {
	case Daily:
		return true
	case Weekly:
		return idx == t.Weekday
	case Monthly:
		return day.Day() == t.DayOfMonth
	case Weekdays:
		return idx < 5
	case Weekends:
		return idx >= 5
	}
	return false
}

func (t Trigger) String() string {
	var b strings.Builder
	clock := fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
	switch t.Kind {
	case Once:
		return "once(" + t.At.Format("2006-01-02 15:04") + ")"
	case Weekly:
		fmt.Fprintf(&b, "weekly(%s %s)", weekdayNames[t.Weekday%7], clock)
	case Monthly:
		fmt.Fprintf(&b, "monthly(day %d %s)", t.DayOfMonth, clock)
	default:
		fmt.Fprintf(&b, "%s(%s)", t.Kind, clock)
	}
	if !t.EndDate.IsZero() {
		b.WriteString(" until " + t.EndDate.Format("2006-01-02"))
	}
	return b.String()
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
