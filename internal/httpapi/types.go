package httpapi

import (
	"nudger/internal/services/scheduler"
)

// MessageResponse is the body of acknowledgement-only endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// RegisterTokenRequest is the body of POST /register-token.
type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// TokensResponse lists registered device tokens.
type TokensResponse struct {
	Tokens []string `json:"tokens"`
}

// SendRequest is an immediate push.
type SendRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image_url,omitempty"`
}

// SendResponse reports the outcome of an immediate push.
type SendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
}

// ScheduleResponse acknowledges a scheduled reminder.
type ScheduleResponse struct {
	Message    string  `json:"message"`
	JobID      string  `json:"job_id"`
	Frequency  string  `json:"frequency"`
	Time       string  `json:"time"`
	DayOfWeek  *int    `json:"day_of_week"`
	DayOfMonth *int    `json:"day_of_month"`
	EndDate    *string `json:"end_date"`
	NextRun    *string `json:"next_run"`
}

// NotificationsResponse lists the reminders of one token.
type NotificationsResponse struct {
	Notifications []scheduler.JobListResponse `json:"notifications"`
	Count         int                         `json:"count"`
}

// JobsResponse lists the armed jobs.
type JobsResponse struct {
	Jobs      []scheduler.Entry `json:"jobs"`
	TotalJobs int               `json:"total_jobs"`
}

// ToneResponse describes one tone for pickers.
type ToneResponse struct {
	ToneID      uint   `json:"tone_id"`
	ToneName    string `json:"tone_name"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image_url"` // client-bundled asset path, not served here
}

// TonesResponse lists every tone.
type TonesResponse struct {
	Tones []ToneResponse `json:"tones"`
}

// TonePreferenceResponse is the effective tone of a token.
type TonePreferenceResponse struct {
	Token     string `json:"token"`
	Tone      string `json:"tone"`
	ToneID    uint   `json:"tone_id"`
	IsDefault bool   `json:"is_default"`
}

// SetToneRequest is the body of POST /user-tone.
type SetToneRequest struct {
	Token  string `json:"token"`
	ToneID uint   `json:"tone_id"`
}

// SetToneResponse acknowledges a preference change.
type SetToneResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	Tone    string `json:"tone"`
	ToneID  uint   `json:"tone_id"`
}

// PromptResponse is one catalog prompt.
type PromptResponse struct {
	PromptID uint   `json:"prompt_id"`
	Text     string `json:"text"`
}

// TonePromptsResponse lists the prompts of a tone.
type TonePromptsResponse struct {
	ToneID  uint             `json:"tone_id"`
	Prompts []PromptResponse `json:"prompts"`
}

// RandomPromptResponse is one randomly picked prompt.
type RandomPromptResponse struct {
	ToneID uint   `json:"tone_id"`
	Prompt string `json:"prompt"`
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}
