package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrNotProjectMember = apperr.Forbidden("Not a member of this project")
	ErrProjectNotFound  = apperr.NotFound("Project not found")
	ErrInsufficientRole = apperr.Forbidden("Forbidden")
	ErrMissingPrincipal = apperr.Unauthorized("Unauthorized")
)

// Checker resolves per-project roles from membership rows. Lookups are not
// cached; every call reads the current membership.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// ProjectRole returns the caller's role on the project. Memberships only count
// while the project is live and the member still belongs to the project's
// organization. A missing or deleted project is ErrProjectNotFound.
func (c *Checker) ProjectRole(ctx context.Context, userID, projectID uuid.UUID) (ProjectRole, error) {
	var member models.ProjectMember
	err := c.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = project_members.project_id AND projects.deleted_at IS NULL").
		Joins("JOIN users ON users.id = project_members.user_id AND users.organization_id = projects.organization_id AND users.deleted_at IS NULL").
		Where("project_members.user_id = ? AND project_members.project_id = ?", userID, projectID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", c.missingMembership(ctx, projectID)
		}
		return "", fmt.Errorf("loading project membership: %w", err)
	}

	role, ok := ParseProjectRole(member.Role)
	if !ok {
		return "", ErrNotProjectMember
	}
	return role, nil
}

func (c *Checker) missingMembership(ctx context.Context, projectID uuid.UUID) error {
	var count int64
	if err := c.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", projectID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("loading project: %w", err)
	}
	if count == 0 {
		return ErrProjectNotFound
	}
	return ErrNotProjectMember
}

// RequireProjectRole fails Forbidden unless the membership exists and its role
// is one of allowed.
func (c *Checker) RequireProjectRole(ctx context.Context, userID, projectID uuid.UUID, allowed ...ProjectRole) (ProjectRole, error) {
	if userID == uuid.Nil {
		return "", ErrMissingPrincipal
	}
	role, err := c.ProjectRole(ctx, userID, projectID)
	if err != nil {
		return "", err
	}
	if !ProjectRoleAllowed(role, allowed...) {
		return "", ErrInsufficientRole
	}
	return role, nil
}
