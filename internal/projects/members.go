package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/rbac"
	"github.com/hugh/agentops/pkg/crypto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound = apperr.NotFound("Member not found")
	ErrLastOwner      = apperr.Conflict("A project needs at least one owner")
	ErrInvalidRole    = apperr.BadRequest("Invalid project role")
	ErrInviteMismatch = apperr.Forbidden("This invitation was sent to a different email")
	ErrUserNotInOrg   = apperr.BadRequest("User must belong to the organization")
)

func (s *Service) ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// SetMemberRole adds userID to the project or changes its role.
func (s *Service) SetMemberRole(ctx context.Context, projectID, userID uuid.UUID, role string) (*models.ProjectMember, error) {
	parsed, ok := rbac.ParseProjectRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if err := s.requireOrgUser(ctx, projectID, userID); err != nil {
		if errors.Is(err, ErrAssigneeNotInOrg) {
			return nil, ErrUserNotInOrg
		}
		return nil, err
	}

	var member models.ProjectMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			member = models.ProjectMember{ProjectID: projectID, UserID: userID, Role: string(parsed)}
			return tx.Create(&member).Error
		}
		if err != nil {
			return err
		}

		if member.Role == string(rbac.ProjectOwner) && parsed != rbac.ProjectOwner {
			if err := ensureAnotherOwner(tx, projectID, userID); err != nil {
				return err
			}
		}
		member.Role = string(parsed)
		return tx.Model(&member).Update("role", member.Role).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Service) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.ProjectMember
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if member.Role == string(rbac.ProjectOwner) {
			if err := ensureAnotherOwner(tx, projectID, userID); err != nil {
				return err
			}
		}
		return tx.Delete(&member).Error
	})
}

func ensureAnotherOwner(tx *gorm.DB, projectID, exceptUserID uuid.UUID) error {
	var owners int64
	if err := tx.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role = ? AND user_id <> ?", projectID, rbac.ProjectOwner, exceptUserID).
		Count(&owners).Error; err != nil {
		return err
	}
	if owners == 0 {
		return ErrLastOwner
	}
	return nil
}

// Invite upserts the (project, email) invitation with a fresh token and
// mails the accept link. Re-inviting replaces the previous token.
func (s *Service) Invite(ctx context.Context, orgID, projectID, inviterID uuid.UUID, email, role string) (*models.ProjectInvite, error) {
	parsed, ok := rbac.ParseProjectRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}
	project, err := s.Get(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	payload := s.invites.NewPayload(auth.InviteProject, projectID, email, string(parsed))
	token, err := s.invites.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding invite: %w", err)
	}

	invite := models.ProjectInvite{
		ProjectID: projectID,
		Email:     payload.Email,
		Role:      string(parsed),
		TokenHash: crypto.SHA256Hex(token),
		ExpiresAt: payload.ExpiresAt().UTC(),
		Used:      false,
		InvitedBy: inviterID,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "token_hash", "expires_at", "used", "invited_by", "updated_at"}),
	}).Create(&invite).Error
	if err != nil {
		return nil, fmt.Errorf("storing invite: %w", err)
	}

	link := s.appURL + "/projects/invites/accept?token=" + token
	if err := s.mailer.Send(ctx, mail.ProjectInvite(invite.Email, project.Name, link)); err != nil {
		return nil, fmt.Errorf("sending invite: %w", err)
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         inviterID,
		Action:         audit.ActionProjectInviteSent,
		Meta:           map[string]any{"projectId": projectID, "email": invite.Email, "role": invite.Role},
	})
	return &invite, nil
}

func (s *Service) ListInvites(ctx context.Context, projectID uuid.UUID) ([]models.ProjectInvite, error) {
	var invites []models.ProjectInvite
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND used = ?", projectID, false).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("listing invites: %w", err)
	}
	return invites, nil
}

// AcceptInvite joins userID to the invited project. The caller's email must
// match the invitation and the token must still be the latest one issued for
// that address.
func (s *Service) AcceptInvite(ctx context.Context, userID uuid.UUID, token string) (*models.ProjectMember, error) {
	payload, err := s.invites.Decode(token)
	if err != nil {
		return nil, err
	}
	if payload.Kind != auth.InviteProject {
		return nil, auth.ErrInvalidInviteToken
	}

	var member models.ProjectMember
	var orgID uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		if !strings.EqualFold(user.Email, payload.Email) {
			return ErrInviteMismatch
		}

		var invite models.ProjectInvite
		err := tx.Where("token_hash = ? AND used = ? AND expires_at > ?", crypto.SHA256Hex(token), false, time.Now().UTC()).
			First(&invite).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return auth.ErrInvalidInviteToken
			}
			return err
		}

		res := tx.Model(&models.ProjectInvite{}).
			Where("id = ? AND used = ?", invite.ID, false).
			Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return auth.ErrInvalidInviteToken
		}

		var project models.Project
		if err := tx.First(&project, "id = ?", invite.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		orgID = project.OrganizationID

		err = tx.Where("project_id = ? AND user_id = ?", invite.ProjectID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			member = models.ProjectMember{ProjectID: invite.ProjectID, UserID: userID, Role: invite.Role}
			return tx.Create(&member).Error
		}
		if err != nil {
			return err
		}
		// An existing OWNER is never demoted by accepting an invite.
		if member.Role == string(rbac.ProjectOwner) {
			return nil
		}
		member.Role = invite.Role
		return tx.Model(&member).Update("role", invite.Role).Error
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionProjectMemberJoined,
		Meta:           map[string]any{"projectId": member.ProjectID, "role": member.Role},
	})
	return &member, nil
}
