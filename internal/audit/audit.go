// Package audit appends organization-scoped audit entries.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

// Action names recorded by the services.
const (
	ActionSignup              = "auth.signup"
	ActionLogin               = "auth.login"
	ActionOAuthLogin          = "auth.oauth_login"
	ActionPasswordReset       = "auth.password_reset"
	ActionInviteSent          = "org.invite_sent"
	ActionInviteAccepted      = "org.invite_accepted"
	ActionInviteRevoked       = "org.invite_revoked"
	ActionMemberRoleChanged   = "org.member_role_changed"
	ActionOrgUpdated          = "org.updated"
	ActionProjectCreated      = "project.created"
	ActionProjectDeleted      = "project.deleted"
	ActionProjectInviteSent   = "project.invite_sent"
	ActionProjectMemberJoined = "project.member_joined"
	ActionMeetingRescheduled  = "meeting.rescheduled"
	ActionMeetingBotInvited   = "meeting.bot_invited"
	ActionMeetingDeleted      = "meeting.deleted"
	ActionIntegrationConnect  = "integration.connected"
	ActionIntegrationRemove   = "integration.disconnected"
)

type Entry struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Action         string
	Meta           map[string]any
}

type Logger struct {
	db *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// Record writes e using the logger's database handle.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	return RecordTx(l.db.WithContext(ctx), e)
}

// RecordTx writes e inside an existing transaction.
func RecordTx(tx *gorm.DB, e Entry) error {
	meta := "{}"
	if len(e.Meta) > 0 {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("encoding audit meta: %w", err)
		}
		meta = string(b)
	}

	row := models.AuditLog{
		OrganizationID: e.OrganizationID,
		Action:         e.Action,
		Meta:           meta,
	}
	if e.UserID != uuid.Nil {
		uid := e.UserID
		row.UserID = &uid
	}

	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// List returns the organization's audit trail, newest first.
func (l *Logger) List(ctx context.Context, orgID uuid.UUID, p database.Pagination) (*database.Page[models.AuditLog], error) {
	query := l.db.WithContext(ctx).Model(&models.AuditLog{}).Where("organization_id = ?", orgID)
	return database.Paginate[models.AuditLog](query, p, "created_at DESC")
}
