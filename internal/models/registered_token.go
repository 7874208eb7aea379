package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegisteredToken is a device push token known to the service.
type RegisteredToken struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"not null;uniqueIndex;size:255" json:"token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (rt *RegisteredToken) BeforeCreate(tx *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (RegisteredToken) TableName() string {
	return "registered_tokens"
}
