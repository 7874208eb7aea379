package models

import "time"

// Tone names understood by the prompt catalog.
const (
	ToneCaring      = "caring"
	ToneNeutral     = "neutral"
	ToneAssertive   = "assertive"
	ToneEncouraging = "encouraging"
)

// Tone is a named content style.
type Tone struct {
	ToneID   uint   `gorm:"primaryKey;column:tone_id" json:"tone_id"`
	ToneName string `gorm:"not null;uniqueIndex;size:50;column:tone_name" json:"tone_name"`
}

// TableName specifies the table name for GORM
func (Tone) TableName() string {
	return "tones"
}

// TonePrompt is one candidate message body for a tone.
type TonePrompt struct {
	PromptID  uint      `gorm:"primaryKey;column:prompt_id" json:"prompt_id"`
	Prompt    string    `gorm:"type:text;not null" json:"text"`
	ToneID    uint      `gorm:"not null;index;column:tone_id" json:"tone_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TonePrompt) TableName() string {
	return "tone_prompts"
}

// TokenTonePreference maps a push token to its chosen tone. One row per token.
type TokenTonePreference struct {
	Token     string    `gorm:"primaryKey;size:255" json:"token"`
	ToneID    uint      `gorm:"not null;column:tone_id" json:"tone_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TokenTonePreference) TableName() string {
	return "token_tone_preferences"
}
