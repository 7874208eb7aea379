package scheduler

import (
	"time"

	"nudger/internal/models"
)

// JobListResponse represents a scheduled reminder in list responses
type JobListResponse struct {
	JobID      string  `json:"job_id"`
	Token      string  `json:"token"`
	Title      string  `json:"title"`
	Time       string  `json:"time"`
	Frequency  string  `json:"frequency"`
	DayOfWeek  *int    `json:"day_of_week"`
	DayOfMonth *int    `json:"day_of_month"`
	EndDate    *string `json:"end_date"`
	NextRun    *string `json:"next_run"` // ISO 8601 format, nil when not armed
	CreatedAt  string  `json:"created_at"`
}

// Entry is the debugging view of one armed job.
type Entry struct {
	JobID   string    `json:"id"`
	Title   string    `json:"name"`
	Trigger string    `json:"trigger"`
	NextRun time.Time `json:"next_run_time"`
}

func toJobListResponse(job *models.ScheduledJob, next time.Time) JobListResponse {
	resp := JobListResponse{
		JobID:      job.JobID,
		Token:      job.Token,
		Title:      job.Title,
		Time:       job.Time,
		Frequency:  job.Frequency,
		DayOfWeek:  job.DayOfWeek,
		DayOfMonth: job.DayOfMonth,
		CreatedAt:  job.CreatedAt.Format(time.RFC3339),
	}

	if job.EndDate != "" {
		endDate := job.EndDate
		resp.EndDate = &endDate
	}

	if !next.IsZero() {
		nextRun := next.Format(time.RFC3339)
		resp.NextRun = &nextRun
	}

	return resp
}
