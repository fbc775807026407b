package meetings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

type ReviewInput struct {
	Title      string
	AssigneeID *uuid.UUID
	DueDate    *time.Time
}

type UpdateActionItemInput struct {
	Title      *string
	Status     *string
	AssigneeID *uuid.UUID
	DueDate    *time.Time
}

func (s *Service) actionItems(ctx context.Context, meetingID uuid.UUID) ([]models.ActionItem, error) {
	var items []models.ActionItem
	if err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("loading action items: %w", err)
	}
	return items, nil
}

func (s *Service) ListActionItems(ctx context.Context, orgID, meetingID uuid.UUID) ([]models.ActionItem, error) {
	if _, err := s.Get(ctx, orgID, meetingID); err != nil {
		return nil, err
	}
	return s.actionItems(ctx, meetingID)
}

// Review records an action item raised while reviewing the meeting.
func (s *Service) Review(ctx context.Context, orgID, meetingID uuid.UUID, in ReviewInput) (*models.ActionItem, error) {
	if _, err := s.Get(ctx, orgID, meetingID); err != nil {
		return nil, err
	}

	item := models.ActionItem{
		MeetingID:      meetingID,
		OrganizationID: orgID,
		Title:          strings.TrimSpace(in.Title),
		Status:         models.ActionItemOpen,
		AssigneeID:     in.AssigneeID,
		DueDate:        utcPtr(in.DueDate),
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("creating action item: %w", err)
	}
	return &item, nil
}

func (s *Service) UpdateActionItem(ctx context.Context, orgID, itemID uuid.UUID, in UpdateActionItemInput) (*models.ActionItem, error) {
	var item models.ActionItem
	load := func() error {
		err := s.db.WithContext(ctx).
			Where("id = ? AND organization_id = ?", itemID, orgID).
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActionItemNotFound
		}
		return err
	}
	if err := load(); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Status != nil {
		if *in.Status != models.ActionItemOpen && *in.Status != models.ActionItemDone {
			return nil, ErrInvalidItemStatus
		}
		updates["status"] = *in.Status
	}
	if in.AssigneeID != nil {
		updates["assignee_id"] = *in.AssigneeID
	}
	if in.DueDate != nil {
		updates["due_date"] = in.DueDate.UTC()
	}
	if len(updates) == 0 {
		return &item, nil
	}

	if err := s.db.WithContext(ctx).Model(&item).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating action item: %w", err)
	}
	if err := load(); err != nil {
		return nil, err
	}
	return &item, nil
}
