package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestTriggerNext(t *testing.T) {
	tests := []struct {
		name  string
		trig  Trigger
		after time.Time
		want  time.Time
	}{
		{
			name:  "daily later today",
			trig:  Trigger{Kind: Daily, Hour: 18, Minute: 0},
			after: at(2025, 6, 11, 12, 0),
			want:  at(2025, 6, 11, 18, 0),
		},
		{
			name:  "daily tomorrow when passed",
			trig:  Trigger{Kind: Daily, Hour: 9, Minute: 0},
			after: at(2025, 6, 11, 12, 0),
			want:  at(2025, 6, 12, 9, 0),
		},
		{
			name:  "daily strictly after",
			trig:  Trigger{Kind: Daily, Hour: 9, Minute: 0},
			after: at(2025, 6, 11, 9, 0),
			want:  at(2025, 6, 12, 9, 0),
		},
		{
			name:  "weekly wednesday from monday",
			trig:  Trigger{Kind: Weekly, Hour: 9, Weekday: 2},
			after: at(2025, 6, 9, 8, 0),
			want:  at(2025, 6, 11, 9, 0),
		},
		{
			name:  "weekly sunday",
			trig:  Trigger{Kind: Weekly, Hour: 20, Weekday: 6},
			after: at(2025, 6, 11, 12, 0),
			want:  at(2025, 6, 15, 20, 0),
		},
		{
			name:  "weekdays skip weekend",
			trig:  Trigger{Kind: Weekdays, Hour: 8, Minute: 30},
			after: at(2025, 6, 13, 9, 0), // Friday after the slot
			want:  at(2025, 6, 16, 8, 30),
		},
		{
			name:  "weekends from friday",
			trig:  Trigger{Kind: Weekends, Hour: 10},
			after: at(2025, 6, 13, 9, 0),
			want:  at(2025, 6, 14, 10, 0),
		},
		{
			name:  "weekends sunday after saturday slot",
			trig:  Trigger{Kind: Weekends, Hour: 10},
			after: at(2025, 6, 14, 11, 0),
			want:  at(2025, 6, 15, 10, 0),
		},
		{
			name:  "monthly next month",
			trig:  Trigger{Kind: Monthly, Hour: 7, DayOfMonth: 5},
			after: at(2025, 6, 11, 12, 0),
			want:  at(2025, 7, 5, 7, 0),
		},
		{
			name:  "monthly 31st skips short months",
			trig:  Trigger{Kind: Monthly, Hour: 7, DayOfMonth: 31},
			after: at(2025, 4, 1, 0, 0),
			want:  at(2025, 5, 31, 7, 0),
		},
		{
			name:  "monthly 29th skips february outside leap years",
			trig:  Trigger{Kind: Monthly, Hour: 7, DayOfMonth: 29},
			after: at(2025, 2, 1, 0, 0),
			want:  at(2025, 3, 29, 7, 0),
		},
		{
			name:  "end date inclusive",
			trig:  Trigger{Kind: Daily, Hour: 9, EndDate: at(2025, 6, 12, 0, 0)},
			after: at(2025, 6, 11, 12, 0),
			want:  at(2025, 6, 12, 9, 0),
		},
		{
			name:  "end date passed",
			trig:  Trigger{Kind: Daily, Hour: 9, EndDate: at(2025, 6, 12, 0, 0)},
			after: at(2025, 6, 12, 9, 0),
			want:  time.Time{},
		},
		{
			name:  "end date in the past",
			trig:  Trigger{Kind: Weekly, Hour: 9, Weekday: 0, EndDate: at(2024, 1, 1, 0, 0)},
			after: at(2025, 6, 11, 12, 0),
			want:  time.Time{},
		},
		{
			name:  "once in the future",
			trig:  Trigger{Kind: Once, At: at(2025, 6, 11, 13, 0)},
			after: at(2025, 6, 11, 12, 0),
			want:  at(2025, 6, 11, 13, 0),
		},
		{
			name:  "once after firing",
			trig:  Trigger{Kind: Once, At: at(2025, 6, 11, 13, 0)},
			after: at(2025, 6, 11, 13, 0),
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.trig.Next(tt.after))
		})
	}
}

func TestWeeklyScenario(t *testing.T) {
	req := Request{Token: "tok", Title: "Savings", Time: "09:00", Frequency: "weekly", DayOfWeek: intPtr(3)}
	trig, err := Compile(req, at(2025, 6, 9, 10, 0)) // Monday
	assert.NoError(t, err)

	first := trig.Next(at(2025, 6, 9, 10, 0))
	assert.Equal(t, time.Wednesday, first.Weekday())
	assert.Equal(t, at(2025, 6, 11, 9, 0), first)

	second := trig.Next(first)
	assert.Equal(t, first.AddDate(0, 0, 7), second)
}

func TestTriggerString(t *testing.T) {
	assert.Equal(t, "weekly(wed 09:00)", Trigger{Kind: Weekly, Hour: 9, Weekday: 2}.String())
	assert.Equal(t, "daily(07:05) until 2025-12-31", Trigger{Kind: Daily, Hour: 7, Minute: 5, EndDate: at(2025, 12, 31, 0, 0)}.String())
	assert.Equal(t, "monthly(day 15 12:00)", Trigger{Kind: Monthly, Hour: 12, DayOfMonth: 15}.String())
}
