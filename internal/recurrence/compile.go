// Package recurrence lowers a caller's recurrence description into a Trigger.
// It performs no I/O.
package recurrence

import (
	"strconv"
	"strings"
	"time"

	"nudger/internal/apperr"
)

// DateLayout is the external end-date format (DD-MM-YYYY).
const DateLayout = "02-01-2006"

// Request is a recurrence description as submitted by a caller.
type Request struct {
	Token      string `json:"token"`
	Title      string `json:"title"`
	Time       string `json:"time"` // HH:MM, 24-hour
	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`  // 1-7, 1 = Monday
	DayOfMonth *int   `json:"day_of_month,omitempty"` // 1-31
	EndDate    string `json:"end_date,omitempty"`     // DD-MM-YYYY
}

// Compile validates req and lowers it to a Trigger relative to now. A Once
// request whose time of day is not after now rolls to the next calendar day.
func Compile(req Request, now time.Time) (Trigger, error) {
	return compile(req, now.Location(), func(hour, minute int) (time.Time, error) {
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !target.After(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target, nil
	})
}

// Restore rebuilds the Trigger of a persisted job from its raw recurrence
// fields. runAt is the stored instant of a Once job and is ignored otherwise.
func Restore(req Request, runAt *time.Time, loc *time.Location) (Trigger, error) {
	return compile(req, loc, func(int, int) (time.Time, error) {
		if runAt == nil || runAt.IsZero() {
			return time.Time{}, apperr.Invalid("run_at", "missing for a once job")
		}
		return runAt.In(loc), nil
	})
}

func compile(req Request, loc *time.Location, onceAt func(hour, minute int) (time.Time, error)) (Trigger, error) {
	if strings.TrimSpace(req.Token) == "" {
		return Trigger{}, apperr.Invalid("token", "token is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return Trigger{}, apperr.Invalid("title", "title is required")
	}

	hour, minute, err := ParseClock(req.Time)
	if err != nil {
		return Trigger{}, err
	}

	freq, ok := ParseFrequency(req.Frequency)
	if !ok {
		return Trigger{}, apperr.Invalid("frequency", "unsupported frequency type: %q", req.Frequency)
	}

	if req.DayOfWeek != nil && (*req.DayOfWeek < 1 || *req.DayOfWeek > 7) {
		return Trigger{}, apperr.Invalid("day_of_week", "must be between 1 and 7, got %d", *req.DayOfWeek)
	}
	if req.DayOfMonth != nil && (*req.DayOfMonth < 1 || *req.DayOfMonth > 31) {
		return Trigger{}, apperr.Invalid("day_of_month", "must be between 1 and 31, got %d", *req.DayOfMonth)
	}

	endDate, err := ParseEndDate(req.EndDate, loc)
	if err != nil {
		return Trigger{}, err
	}

	t := Trigger{Kind: freq, Hour: hour, Minute: minute, EndDate: endDate}

	switch freq {
	case Once:
		at, err := onceAt(hour, minute)
		if err != nil {
			return Trigger{}, err
		}
		// A one-shot job retires after its single fire, so an end date
		// has nothing to bound.
		t.At = at
		t.EndDate = time.Time{}
	case Weekly:
		if req.DayOfWeek == nil {
			return Trigger{}, apperr.Invalid("day_of_week", "day_of_week is required for weekly frequency")
		}
		t.Weekday = *req.DayOfWeek - 1
	case Monthly:
		if req.DayOfMonth == nil {
			return Trigger{}, apperr.Invalid("day_of_month", "day_of_month is required for monthly frequency")
		}
		t.DayOfMonth = *req.DayOfMonth
	}
	return t, nil
}

// ParseClock parses a 24-hour HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, 0, apperr.Invalid("time", "time must be in HH:MM format (e.g. \"14:30\"), got %q", s)
	}
	hour, herr := strconv.Atoi(parts[0])
	minute, merr := strconv.Atoi(parts[1])
	if herr != nil || merr != nil {
		return 0, 0, apperr.Invalid("time", "time must be in HH:MM format (e.g. \"14:30\"), got %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, apperr.Invalid("time", "time values out of range in %q", s)
	}
	return hour, minute, nil
}

// ParseEndDate parses a DD-MM-YYYY date into midnight in loc. An empty string
// yields the zero time.
func ParseEndDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperr.Invalid("end_date", "end date must be in DD-MM-YYYY format (e.g. \"31-12-2025\"), got %q", s)
	}
	return d, nil
}
