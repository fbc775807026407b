package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken stores only the sha256 of the raw token handed to the client.
type RefreshToken struct {
	Record
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

type PasswordResetToken struct {
	Record
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	TokenHash string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expiresAt"`
	Used      bool       `gorm:"not null;default:false" json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
