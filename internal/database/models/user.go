package models

import "github.com/google/uuid"

type User struct {
	Base
	Email          string    `gorm:"uniqueIndex;size:320;not null" json:"email"`
	Name           string    `json:"name"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organizationId"`
	Role           string    `gorm:"size:16;not null;default:'MEMBER'" json:"role"` // ADMIN, PM, MEMBER
	GlobalRole     *string   `gorm:"size:32" json:"globalRole,omitempty"`
	GoogleID       *string   `gorm:"uniqueIndex;size:191" json:"-"`
	FacebookID     *string   `gorm:"uniqueIndex;size:191" json:"-"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}
