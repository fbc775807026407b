package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound     = apperr.NotFound("Task not found")
	ErrInvalidStatus    = apperr.BadRequest("Invalid task status")
	ErrAssigneeNotInOrg = apperr.BadRequest("Assignee must belong to the organization")
)

type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
}

// UpdateTaskInput applies only non-nil fields. ClearAssignee unsets the assignee.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	DueDate       *time.Time
}

func (s *Service) ListTasks(ctx context.Context, projectID uuid.UUID, status string) ([]models.Task, error) {
	query := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		if !models.TaskStatus(status).Valid() {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := query.Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

func (s *Service) CreateTask(ctx context.Context, projectID, userID uuid.UUID, in CreateTaskInput) (*models.Task, error) {
	if in.AssigneeID != nil {
		if err := s.requireOrgUser(ctx, projectID, *in.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := models.Task{
		ProjectID:   projectID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      models.TaskStatusTodo,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		CreatedBy:   userID,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

func (s *Service) getTask(ctx context.Context, projectID, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", taskID, projectID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *Service) UpdateTask(ctx context.Context, projectID, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	task, err := s.getTask(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *in.Status
	}
	if in.ClearAssignee {
		updates["assignee_id"] = nil
	} else if in.AssigneeID != nil {
		if err := s.requireOrgUser(ctx, projectID, *in.AssigneeID); err != nil {
			return nil, err
		}
		updates["assignee_id"] = *in.AssigneeID
	}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return s.getTask(ctx, projectID, taskID)
}

func (s *Service) DeleteTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND project_id = ?", taskID, projectID).Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("deleting task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
