// Package meetings covers scheduled meetings, the recording bot lifecycle,
// transcripts and the action items reviewed out of them.
package meetings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrMeetingNotFound    = apperr.NotFound("Meeting not found")
	ErrActionItemNotFound = apperr.NotFound("Action item not found")
	ErrInvalidSchedule    = apperr.BadRequest("endsAt must be after startsAt")
	ErrInvalidItemStatus  = apperr.BadRequest("Invalid action item status")
)

type Service struct {
	db     *gorm.DB
	audit  *audit.Logger
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, audit: audit.NewLogger(db), logger: logger}
}

type CreateInput struct {
	Title      string
	StartsAt   time.Time
	EndsAt     *time.Time
	ProjectID  *uuid.UUID
	MeetingURL string
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, p database.Pagination) (*database.Page[models.Meeting], error) {
	query := s.db.WithContext(ctx).Model(&models.Meeting{}).Where("organization_id = ?", orgID)
	return database.Paginate[models.Meeting](query, p, "starts_at DESC")
}

func (s *Service) Create(ctx context.Context, orgID, userID uuid.UUID, in CreateInput) (*models.Meeting, error) {
	if in.EndsAt != nil && !in.EndsAt.After(in.StartsAt) {
		return nil, ErrInvalidSchedule
	}
	if in.ProjectID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Project{}).
			Where("id = ? AND organization_id = ?", *in.ProjectID, orgID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, apperr.BadRequest("Project not found in this organization")
		}
	}

	meeting := models.Meeting{
		OrganizationID: orgID,
		ProjectID:      in.ProjectID,
		Title:          strings.TrimSpace(in.Title),
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         utcPtr(in.EndsAt),
		MeetingURL:     in.MeetingURL,
		BotStatus:      models.BotStatusNone,
		CreatedBy:      userID,
	}
	if err := s.db.WithContext(ctx).Create(&meeting).Error; err != nil {
		return nil, fmt.Errorf("creating meeting: %w", err)
	}
	return &meeting, nil
}

func (s *Service) Get(ctx context.Context, orgID, meetingID uuid.UUID) (*models.Meeting, error) {
	var meeting models.Meeting
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", meetingID, orgID).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, err
	}
	return &meeting, nil
}

func (s *Service) Reschedule(ctx context.Context, orgID, meetingID, userID uuid.UUID, startsAt time.Time, endsAt *time.Time) (*models.Meeting, error) {
	if endsAt != nil && !endsAt.After(startsAt) {
		return nil, ErrInvalidSchedule
	}
	meeting, err := s.Get(ctx, orgID, meetingID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(meeting).Updates(map[string]interface{}{
		"starts_at": startsAt.UTC(),
		"ends_at":   utcPtr(endsAt),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("rescheduling meeting: %w", err)
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionMeetingRescheduled,
		Meta:           map[string]any{"meetingId": meetingID, "startsAt": startsAt.UTC()},
	})
	return s.Get(ctx, orgID, meetingID)
}

func (s *Service) Delete(ctx context.Context, orgID, meetingID, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", meetingID, orgID).
		Delete(&models.Meeting{})
	if res.Error != nil {
		return fmt.Errorf("deleting meeting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMeetingNotFound
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionMeetingDeleted,
		Meta:           map[string]any{"meetingId": meetingID},
	})
	return nil
}

// InviteBot asks the recording bot to join. The bot confirms through the
// meeting_bot_joined webhook.
func (s *Service) InviteBot(ctx context.Context, orgID, meetingID, userID uuid.UUID) (*models.Meeting, error) {
	meeting, err := s.Get(ctx, orgID, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.BotStatus == models.BotStatusJoined {
		return meeting, nil
	}
	if err := s.db.WithContext(ctx).Model(meeting).Update("bot_status", models.BotStatusInvited).Error; err != nil {
		return nil, fmt.Errorf("inviting bot: %w", err)
	}
	meeting.BotStatus = models.BotStatusInvited

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionMeetingBotInvited,
		Meta:           map[string]any{"meetingId": meetingID},
	})
	return meeting, nil
}

func (s *Service) recordAudit(ctx context.Context, e audit.Entry) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", e.Action, "error", err)
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
