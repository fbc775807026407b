package orgs

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
	ErrInviteNotFound = apperr.NotFound("Invite not found")
	ErrAlreadyMember  = apperr.Conflict("User is already a member of this organization")
)

// Invite upserts the (organization, email) invitation with a fresh token and
// mails the accept link. The previous token for that address stops working.
func (s *Service) Invite(ctx context.Context, orgID, inviterID uuid.UUID, email, role string) (*models.Invite, error) {
	parsed := rbac.OrgMember
	if strings.TrimSpace(role) != "" {
		r, ok := rbac.ParseOrgRole(role)
		if !ok {
			return nil, ErrInvalidRole
		}
		parsed = r
	}
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	email = auth.NormalizeEmail(email)
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND organization_id = ?", email, orgID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyMember
	}

	payload := s.invites.NewPayload(auth.InviteOrganization, orgID, email, string(parsed))
	token, err := s.invites.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding invite: %w", err)
	}

	invite := models.Invite{
		OrganizationID: orgID,
		Email:          payload.Email,
		Role:           string(parsed),
		Status:         models.InviteStatusPending,
		TokenHash:      crypto.SHA256Hex(token),
		ExpiresAt:      payload.ExpiresAt().UTC(),
		InvitedBy:      inviterID,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "status", "token_hash", "expires_at", "invited_by", "accepted_at", "updated_at"}),
	}).Create(&invite).Error
	if err != nil {
		return nil, fmt.Errorf("storing invite: %w", err)
	}

	link := s.appURL + "/invites/accept?token=" + token
	if err := s.mailer.Send(ctx, mail.OrganizationInvite(invite.Email, org.Name, link)); err != nil {
		return nil, fmt.Errorf("sending invite: %w", err)
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         inviterID,
		Action:         audit.ActionInviteSent,
		Meta:           map[string]any{"email": invite.Email, "role": invite.Role},
	})
	return &invite, nil
}

// BulkResult reports per-address outcomes; one bad address does not stop the rest.
type BulkResult struct {
	Invited []models.Invite   `json:"invited"`
	Failed  map[string]string `json:"failed"`
}

func (s *Service) BulkInvite(ctx context.Context, orgID, inviterID uuid.UUID, emails []string, role string) (*BulkResult, error) {
	res := &BulkResult{Invited: []models.Invite{}, Failed: map[string]string{}}
	seen := make(map[string]struct{}, len(emails))
	for _, raw := range emails {
		email := auth.NormalizeEmail(raw)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		invite, err := s.Invite(ctx, orgID, inviterID, email, role)
		if err != nil {
			var appErr *apperr.Error
			if !errors.As(err, &appErr) {
				s.logger.ErrorContext(ctx, "bulk invite failed", "email", email, "error", err)
				res.Failed[email] = "Could not send invitation"
				continue
			}
			res.Failed[email] = appErr.Message
			continue
		}
		res.Invited = append(res.Invited, *invite)
	}
	return res, nil
}

func (s *Service) ListInvites(ctx context.Context, orgID uuid.UUID) ([]models.Invite, error) {
	var invites []models.Invite
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", orgID, models.InviteStatusPending).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("listing invites: %w", err)
	}
	return invites, nil
}

func (s *Service) RevokeInvite(ctx context.Context, orgID, inviteID, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ? AND status = ?", inviteID, orgID, models.InviteStatusPending).
		Delete(&models.Invite{})
	if res.Error != nil {
		return fmt.Errorf("revoking invite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInviteNotFound
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionInviteRevoked,
		Meta:           map[string]any{"inviteId": inviteID},
	})
	return nil
}

type AcceptInput struct {
	Token    string
	Name     string
	Password string
}

// AcceptInvite redeems an organization invitation. A new account is created
// when the address is unknown; an existing account moves into the inviting
// organization with the invited role. The result is a fresh session.
func (s *Service) AcceptInvite(ctx context.Context, in AcceptInput) (*auth.Session, error) {
	payload, err := s.invites.Decode(in.Token)
	if err != nil {
		return nil, err
	}
	if payload.Kind != auth.InviteOrganization {
		return nil, auth.ErrInvalidInviteToken
	}

	passwordHash := auth.UnusablePassword
	if in.Password != "" {
		passwordHash, err = auth.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		err := tx.Where("token_hash = ? AND status = ? AND expires_at > ?",
			crypto.SHA256Hex(in.Token), models.InviteStatusPending, time.Now().UTC()).
			First(&invite).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return auth.ErrInvalidInviteToken
			}
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Invite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Updates(map[string]interface{}{"status": models.InviteStatusAccepted, "accepted_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return auth.ErrInvalidInviteToken
		}

		err = tx.Where("email = ?", invite.Email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			name := strings.TrimSpace(in.Name)
			if name == "" {
				name, _, _ = strings.Cut(invite.Email, "@")
			}
			user = models.User{
				Email:          invite.Email,
				Name:           name,
				PasswordHash:   passwordHash,
				OrganizationID: invite.OrganizationID,
				Role:           invite.Role,
			}
			if err := tx.Create(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return auth.ErrEmailTaken
				}
				return err
			}
		case err != nil:
			return err
		default:
			if user.OrganizationID != invite.OrganizationID {
				if err := leaveOrganization(tx, &user); err != nil {
					return err
				}
			}
			err := tx.Model(&user).Updates(map[string]interface{}{
				"organization_id": invite.OrganizationID,
				"role":            invite.Role,
				"global_role":     nil,
			}).Error
			if err != nil {
				return err
			}
			user.OrganizationID = invite.OrganizationID
			user.Role = invite.Role
			user.GlobalRole = nil
		}

		return audit.RecordTx(tx, audit.Entry{
			OrganizationID: invite.OrganizationID,
			UserID:         user.ID,
			Action:         audit.ActionInviteAccepted,
			Meta:           map[string]any{"inviteId": invite.ID, "role": invite.Role},
		})
	})
	if err != nil {
		return nil, err
	}

	return s.auth.IssueSession(ctx, &user)
}

// leaveOrganization drops user's ties to their current organization before a
// move: the last ADMIN may not leave, and project memberships in the old
// organization are removed.
func leaveOrganization(tx *gorm.DB, user *models.User) error {
	if user.Role == string(rbac.OrgAdmin) {
		var admins int64
		if err := tx.Model(&models.User{}).
			Where("organization_id = ? AND role = ? AND id <> ?", user.OrganizationID, rbac.OrgAdmin, user.ID).
			Count(&admins).Error; err != nil {
			return err
		}
		if admins == 0 {
			return ErrLastAdmin
		}
	}

	oldProjects := tx.Unscoped().Model(&models.Project{}).
		Select("id").
		Where("organization_id = ?", user.OrganizationID)
	return tx.Where("user_id = ? AND project_id IN (?)", user.ID, oldProjects).
		Delete(&models.ProjectMember{}).Error
}
