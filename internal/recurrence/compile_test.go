package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudger/internal/apperr"
)

func intPtr(v int) *int { return &v }

// 2025-06-11 is a Wednesday.
var wednesdayNoon = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func baseRequest(freq string) Request {
	return Request{Token: "device-token-1234", Title: "Check budget", Time: "09:00", Frequency: freq}
}

func TestCompileOnce(t *testing.T) {
	t.Run("Should schedule later today when time has not passed", func(t *testing.T) {
		req := baseRequest("once")
		req.Time = "18:30"

		trig, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		assert.Equal(t, Once, trig.Kind)
		assert.Equal(t, time.Date(2025, 6, 11, 18, 30, 0, 0, time.UTC), trig.At)
	})

	t.Run("Should roll forward exactly one day when time already passed", func(t *testing.T) {
		req := baseRequest("once")

		trig, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		today := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, today.Add(24*time.Hour), trig.At)
	})

	t.Run("Should roll forward when time equals now", func(t *testing.T) {
		req := baseRequest("once")
		req.Time = "12:00"

		trig, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 12, 12, 0, 0, 0, time.UTC), trig.At)
	})

	t.Run("Should pick next calendar day when submitted at 23:59", func(t *testing.T) {
		req := baseRequest("once")
		req.Time = "00:01"
		now := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)

		trig, err := Compile(req, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), trig.At)
	})

	t.Run("Should ignore end date", func(t *testing.T) {
		req := baseRequest("once")
		req.EndDate = "01-01-2020"

		trig, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		assert.True(t, trig.EndDate.IsZero())
		assert.False(t, trig.Next(wednesdayNoon).IsZero())
	})
}

func TestCompileRecurring(t *testing.T) {
	t.Run("Daily compiles deterministically", func(t *testing.T) {
		req := baseRequest("DAILY")

		first, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		second, err := Compile(req, wednesdayNoon.Add(5*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, Trigger{Kind: Daily, Hour: 9, Minute: 0}, first)
	})

	t.Run("Weekly converts day_of_week to Monday-based index", func(t *testing.T) {
		tests := []struct {
			in   int
			want int
		}{
			{1, 0},
			{3, 2},
			{7, 6},
		}
		for _, tt := range tests {
			req := baseRequest("weekly")
			req.DayOfWeek = intPtr(tt.in)

			trig, err := Compile(req, wednesdayNoon)
			require.NoError(t, err)
			assert.Equal(t, tt.want, trig.Weekday, "day_of_week=%d", tt.in)
		}
	})

	t.Run("Monthly keeps day of month", func(t *testing.T) {
		req := baseRequest("monthly")
		req.DayOfMonth = intPtr(31)

		trig, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		assert.Equal(t, 31, trig.DayOfMonth)
	})

	t.Run("End date attaches to recurring triggers", func(t *testing.T) {
		req := baseRequest("weekdays")
		req.EndDate = "31-12-2025"

		trig, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), trig.EndDate)
	})
}

func TestCompileValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(r *Request)
		field string
	}{
		{"missing weekday on weekly", func(r *Request) { r.Frequency = "weekly" }, "day_of_week"},
		{"missing day on monthly", func(r *Request) { r.Frequency = "monthly" }, "day_of_month"},
		{"weekday out of range", func(r *Request) { r.Frequency = "weekly"; r.DayOfWeek = intPtr(8) }, "day_of_week"},
		{"day of month out of range", func(r *Request) { r.Frequency = "monthly"; r.DayOfMonth = intPtr(0) }, "day_of_month"},
		{"bad time format", func(r *Request) { r.Time = "9am" }, "time"},
		{"hour out of range", func(r *Request) { r.Time = "24:00" }, "time"},
		{"minute out of range", func(r *Request) { r.Time = "10:60" }, "time"},
		{"too many time parts", func(r *Request) { r.Time = "10:00:00" }, "time"},
		{"bad end date", func(r *Request) { r.EndDate = "2025-12-31" }, "end_date"},
		{"impossible end date", func(r *Request) { r.EndDate = "31-02-2025" }, "end_date"},
		{"unknown frequency", func(r *Request) { r.Frequency = "hourly" }, "frequency"},
		{"missing token", func(r *Request) { r.Token = "" }, "token"},
		{"missing title", func(r *Request) { r.Title = " " }, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest("daily")
			tt.mut(&req)

			_, err := Compile(req, wednesdayNoon)
			require.Error(t, err)

			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("Unknown frequency names the value", func(t *testing.T) {
		req := baseRequest("fortnightly")
		_, err := Compile(req, wednesdayNoon)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fortnightly")
	})
}

func TestRestore(t *testing.T) {
	t.Run("Once uses the stored instant", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 7, 15, 0, 0, time.UTC)
		req := baseRequest("once")
		req.Time = "07:15"

		trig, err := Restore(req, &at, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, at, trig.At)
	})

	t.Run("Once without instant is rejected", func(t *testing.T) {
		_, err := Restore(baseRequest("once"), nil, time.UTC)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("Weekly matches a fresh compile", func(t *testing.T) {
		req := baseRequest("weekly")
		req.DayOfWeek = intPtr(5)

		compiled, err := Compile(req, wednesdayNoon)
		require.NoError(t, err)
		restored, err := Restore(req, nil, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, compiled, restored)
	})
}
