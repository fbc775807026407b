// Package orgs manages the organization profile, its members and the
// organization invitations that bring new people in.
package orgs

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
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/rbac"
	"gorm.io/gorm"
)

var (
	ErrOrgNotFound       = apperr.NotFound("Organization not found")
	ErrMemberNotFound    = apperr.NotFound("Member not found")
	ErrLastAdmin         = apperr.Conflict("An organization needs at least one admin")
	ErrInvalidRole       = apperr.BadRequest("Invalid role")
	ErrInvalidGlobalRole = apperr.BadRequest("Invalid global role")
)

type Service struct {
	db      *gorm.DB
	audit   *audit.Logger
	auth    *auth.Service
	invites *auth.InviteCodec
	mailer  mail.Mailer
	appURL  string
	logger  *slog.Logger
}

type Config struct {
	DB      *gorm.DB
	Auth    *auth.Service
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
		auth:    cfg.Auth,
		invites: cfg.Invites,
		mailer:  cfg.Mailer,
		appURL:  cfg.AppURL,
		logger:  logger,
	}
}

func (s *Service) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *Service) Rename(ctx context.Context, orgID, userID uuid.UUID, name string) (*models.Organization, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := s.db.WithContext(ctx).Model(org).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("renaming organization: %w", err)
	}
	org.Name = name

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionOrgUpdated,
		Meta:           map[string]any{"name": name},
	})
	return org, nil
}

func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return users, nil
}

// UpdateMemberInput changes either or both role vocabularies. An empty
// GlobalRole string clears the stored global role.
type UpdateMemberInput struct {
	Role       *string
	GlobalRole *string
}

func (s *Service) UpdateMember(ctx context.Context, orgID, actorID, userID uuid.UUID, in UpdateMemberInput) (*models.User, error) {
	updates := map[string]interface{}{}
	var newRole rbac.OrgRole
	if in.Role != nil {
		r, ok := rbac.ParseOrgRole(*in.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		newRole = r
		updates["role"] = string(r)
	}
	if in.GlobalRole != nil {
		if strings.TrimSpace(*in.GlobalRole) == "" {
			updates["global_role"] = nil
		} else {
			g, ok := rbac.ParseGlobalRole(*in.GlobalRole)
			if !ok {
				return nil, ErrInvalidGlobalRole
			}
			updates["global_role"] = string(g)
		}
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND organization_id = ?", userID, orgID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}

		if user.Role == string(rbac.OrgAdmin) && newRole != "" && newRole != rbac.OrgAdmin {
			var admins int64
			if err := tx.Model(&models.User{}).
				Where("organization_id = ? AND role = ? AND id <> ?", orgID, rbac.OrgAdmin, userID).
				Count(&admins).Error; err != nil {
				return err
			}
			if admins == 0 {
				return ErrLastAdmin
			}
		}

		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		meta := map[string]any{"userId": userID}
		for k, v := range updates {
			meta[k] = v
		}
		s.recordAudit(ctx, audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionMemberRoleChanged,
			Meta:           meta,
		})
	}
	return &user, nil
}

func (s *Service) recordAudit(ctx context.Context, e audit.Entry) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", e.Action, "error", err)
	}
}
