package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduledJob is the durable record of one scheduled reminder. It keeps the
// raw recurrence fields so the trigger can be rebuilt on restart without the
// submitted request.
type ScheduledJob struct {
	JobID      string     `gorm:"primaryKey;column:job_id;size:255" json:"job_id"`
	Token      string     `gorm:"not null;index;size:255" json:"token"` // push token of the recipient
	Title      string     `gorm:"not null;size:255" json:"title"`
	Time       string     `gorm:"not null;size:10" json:"time"`      // HH:MM
	Frequency  string     `gorm:"not null;size:20" json:"frequency"` // once, daily, weekly, monthly, weekdays, weekends
	DayOfWeek  *int       `gorm:"column:day_of_week" json:"day_of_week"`
	DayOfMonth *int       `gorm:"column:day_of_month" json:"day_of_month"`
	EndDate    string     `gorm:"column:end_date;size:20" json:"end_date,omitempty"` // DD-MM-YYYY
	RunAt      *time.Time `gorm:"column:run_at" json:"run_at,omitempty"`            // once only
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate a job ID before creating the record
func (sj *ScheduledJob) BeforeCreate(tx *gorm.DB) error {
	if sj.JobID == "" {
		sj.JobID = NewJobID(sj.Token)
	}
	return nil
}

// TableName specifies the table name for GORM
func (ScheduledJob) TableName() string {
	return "scheduled_notifications"
}

// NewJobID derives a job id from the recipient token plus a random suffix.
func NewJobID(token string) string {
	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("scheduled_%s_%s", prefix, uuid.New().String()[:8])
}
