// Package projects manages projects and everything scoped to one: tasks,
// expenses, the budget rollup, memberships and project invitations.
package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/rbac"
	"gorm.io/gorm"
)

var ErrProjectNotFound = apperr.NotFound("Project not found")

type Service struct {
	db      *gorm.DB
	audit   *audit.Logger
	invites *auth.InviteCodec
	mailer  mail.Mailer
	appURL  string
	logger  *slog.Logger
}

type Config struct {
	DB      *gorm.DB
	Invites *auth.InviteCodec
	Mailer  mail.Mailer
	AppURL  string
	Logger  *slog.Logger
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:      cfg.DB,
		audit:   audit.NewLogger(cfg.DB),
		invites: cfg.Invites,
		mailer:  cfg.Mailer,
		appURL:  cfg.AppURL,
		logger:  logger,
	}
}

type CreateInput struct {
	Name        string
	Description string
	BudgetCents int64
}

type UpdateInput struct {
	Name        *string
	Description *string
	BudgetCents *int64
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID, p database.Pagination) (*database.Page[models.Project], error) {
	query := s.db.WithContext(ctx).Model(&models.Project{}).Where("organization_id = ?", orgID)
	return database.Paginate[models.Project](query, p, "created_at DESC")
}

// Create stores the project and makes the creator its OWNER atomically.
func (s *Service) Create(ctx context.Context, orgID, userID uuid.UUID, in CreateInput) (*models.Project, error) {
	project := models.Project{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		BudgetCents:    in.BudgetCents,
		CreatedBy:      userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		owner := models.ProjectMember{
			ProjectID: project.ID,
			UserID:    userID,
			Role:      string(rbac.ProjectOwner),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		return audit.RecordTx(tx, audit.Entry{
			OrganizationID: orgID,
			UserID:         userID,
			Action:         audit.ActionProjectCreated,
			Meta:           map[string]any{"projectId": project.ID},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return &project, nil
}

func (s *Service) Get(ctx context.Context, orgID, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", projectID, orgID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (s *Service) Update(ctx context.Context, orgID, projectID uuid.UUID, in UpdateInput) (*models.Project, error) {
	project, err := s.Get(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.BudgetCents != nil {
		updates["budget_cents"] = *in.BudgetCents
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return s.Get(ctx, orgID, projectID)
}

// Delete soft-deletes the project. Tasks and expenses stay behind the
// deleted parent.
func (s *Service) Delete(ctx context.Context, orgID, projectID, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", projectID, orgID).
		Delete(&models.Project{})
	if res.Error != nil {
		return fmt.Errorf("deleting project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionProjectDeleted,
		Meta:           map[string]any{"projectId": projectID},
	})
	return nil
}

type Metrics struct {
	Total int64 `json:"total"`
	Done  int64 `json:"done"`
}

func (s *Service) Metrics(ctx context.Context, projectID uuid.UUID) (*Metrics, error) {
	var m Metrics
	base := s.db.WithContext(ctx).Model(&models.Task{}).Where("project_id = ?", projectID)
	if err := base.Session(&gorm.Session{}).Count(&m.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.TaskStatusDone).Count(&m.Done).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) recordAudit(ctx context.Context, e audit.Entry) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", e.Action, "error", err)
	}
}

// requireOrgUser fails BadRequest unless userID belongs to the project's organization.
func (s *Service) requireOrgUser(ctx context.Context, projectID, userID uuid.UUID) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN projects ON projects.organization_id = users.organization_id").
		Where("projects.id = ? AND users.id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAssigneeNotInOrg
	}
	return nil
}
