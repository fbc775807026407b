package models

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	Base
	Name string `gorm:"not null" json:"name"`

	Users []User `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
)

// Invite is an organization-level invitation, one row per (organization, email).
// Re-inviting the same address refreshes the row in place.
type Invite struct {
	Record
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_invites_org_email" json:"organizationId"`
	Email          string     `gorm:"size:320;not null;uniqueIndex:idx_invites_org_email" json:"email"`
	Role           string     `gorm:"size:16;not null;default:'MEMBER'" json:"role"`
	Status         string     `gorm:"size:16;not null;default:'pending'" json:"status"`
	TokenHash      string     `gorm:"size:64;index" json:"-"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	InvitedBy      uuid.UUID  `gorm:"type:uuid" json:"invitedBy"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
}

func (Invite) TableName() string {
	return "invites"
}

type AuditLog struct {
	Record
	OrganizationID uuid.UUID  `gorm:"type:uuid;index" json:"organizationId"`
	UserID         *uuid.UUID `gorm:"type:uuid" json:"userId,omitempty"`
	Action         string     `gorm:"size:64;not null;index" json:"action"`
	Meta           string     `gorm:"type:text" json:"meta"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
