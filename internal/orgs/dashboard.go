package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database/models"
	"golang.org/x/sync/errgroup"
)

type Dashboard struct {
	Users       int64 `json:"users"`
	Meetings    int64 `json:"meetings"`
	Projects    int64 `json:"projects"`
	ActionItems int64 `json:"actionItems"`
}

// Dashboard runs the four organization counts concurrently.
func (s *Service) Dashboard(ctx context.Context, orgID uuid.UUID) (*Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	count := func(model interface{}, dest *int64) func() error {
		return func() error {
			return s.db.WithContext(gctx).Model(model).
				Where("organization_id = ?", orgID).
				Count(dest).Error
		}
	}
	g.Go(count(&models.User{}, &d.Users))
	g.Go(count(&models.Meeting{}, &d.Meetings))
	g.Go(count(&models.Project{}, &d.Projects))
	g.Go(count(&models.ActionItem{}, &d.ActionItems))

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}
	return &d, nil
}

type WorkspaceProject struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// Workspace lists the projects the user belongs to with their project role.
func (s *Service) Workspace(ctx context.Context, userID uuid.UUID) ([]WorkspaceProject, error) {
	out := []WorkspaceProject{}
	err := s.db.WithContext(ctx).
		Table("project_members").
		Select("projects.id AS id, projects.name AS name, project_members.role AS role").
		Joins("JOIN projects ON projects.id = project_members.project_id AND projects.deleted_at IS NULL").
		Where("project_members.user_id = ?", userID).
		Order("projects.name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return out, nil
}
