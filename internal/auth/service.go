package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/rbac"
	"github.com/hugh/agentops/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = apperr.NotFound("User not found")
	ErrEmailTaken        = apperr.Conflict("Email already in use")
	ErrInvalidResetToken = apperr.BadRequest("Invalid or expired token")
)

const resetTokenBytes = 32

// Service composes tokens, passwords and identity resolution into the
// session lifecycle: signup, login, refresh, logout and password recovery.
type Service struct {
	db       *gorm.DB
	jwt      *JWTService
	refresh  *RefreshStore
	resolver *Resolver
	mailer   mail.Mailer
	audit    *audit.Logger
	logger   *slog.Logger
	appURL   string
	resetTTL time.Duration
	now      func() time.Time
}

type ServiceConfig struct {
	DB       *gorm.DB
	JWT      *JWTService
	Refresh  *RefreshStore
	Mailer   mail.Mailer
	Logger   *slog.Logger
	AppURL   string
	ResetTTL time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:       cfg.DB,
		jwt:      cfg.JWT,
		refresh:  cfg.Refresh,
		resolver: NewResolver(cfg.DB),
		mailer:   cfg.Mailer,
		audit:    audit.NewLogger(cfg.DB),
		logger:   logger,
		appURL:   cfg.AppURL,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// Session is the result of any successful authentication.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

type SignupInput struct {
	Name             string
	Email            string
	Password         string
	OrganizationName string
}

// Signup creates the organization and its first ADMIN user in one transaction.
// A concurrent signup that wins the unique email index still yields
// ErrEmailTaken, and the organization is rolled back with the user.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email := NormalizeEmail(input.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	var user models.User
	var rawRefresh string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org := models.Organization{Name: input.OrganizationName}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		user = models.User{
			Email:          email,
			Name:           input.Name,
			PasswordHash:   hash,
			OrganizationID: org.ID,
			Role:           string(rbac.OrgAdmin),
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		user.Organization = &org

		rawRefresh, err = s.refresh.issueTx(tx, user.ID)
		if err != nil {
			return err
		}

		return audit.RecordTx(tx, audit.Entry{
			OrganizationID: org.ID,
			UserID:         user.ID,
			Action:         audit.ActionSignup,
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	access, err := s.jwt.GenerateToken(PrincipalFromUser(&user))
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: rawRefresh, User: &user}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.resolver.ResolveLocal(ctx, email, password)
	if err != nil {
		return nil, err
	}

	session, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, audit.Entry{OrganizationID: user.OrganizationID, UserID: user.ID, Action: audit.ActionLogin})
	return session, nil
}

// IssueSession mints an access token and a fresh refresh token for user.
func (s *Service) IssueSession(ctx context.Context, user *models.User) (*Session, error) {
	access, err := s.jwt.GenerateToken(PrincipalFromUser(user))
	if err != nil {
		return nil, err
	}
	raw, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: raw, User: user}, nil
}

// Refresh rotates the presented refresh token.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*Session, error) {
	next, user, err := s.refresh.Rotate(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}
	access, err := s.jwt.GenerateToken(PrincipalFromUser(user))
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: next, User: user}, nil
}

// Logout revokes the presented refresh token, or every refresh token the
// user holds when none is presented.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, rawRefresh string) error {
	if rawRefresh != "" {
		return s.refresh.Revoke(ctx, userID, rawRefresh)
	}
	return s.refresh.RevokeAll(ctx, userID)
}

// ForgotPassword always succeeds for unknown emails. For a known email it
// stores a single-use reset token and mails the reset link; mail failures
// are returned.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	raw, err := crypto.RandomHex(resetTokenBytes)
	if err != nil {
		return err
	}
	row := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: crypto.SHA256Hex(raw),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	link := s.appURL + "/reset-password?token=" + url.QueryEscape(raw)
	if err := s.mailer.Send(ctx, mail.PasswordReset(user.Email, link)); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password, consumes the reset token and revokes
// every refresh token of the user, all in one transaction.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return ErrInvalidResetToken
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	tokenHash := crypto.SHA256Hex(rawToken)

	var orgID, userID uuid.UUID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordResetToken
		err := tx.Where("token_hash = ? AND used = ? AND expires_at > ?", tokenHash, false, s.now()).
			First(&reset).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}

		now := s.now()
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used = ?", reset.ID, false).
			Updates(map[string]interface{}{"used": true, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidResetToken
		}

		var user models.User
		if err := tx.First(&user, "id = ?", reset.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}
		if err := tx.Model(&user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		orgID, userID = user.OrganizationID, user.ID

		return revokeAllTx(tx, user.ID)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, audit.Entry{OrganizationID: orgID, UserID: userID, Action: audit.ActionPasswordReset})
	return nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// OAuthLogin resolves the provider profile and issues a session exactly
// like a local login.
func (s *Service) OAuthLogin(ctx context.Context, profile OAuthProfile) (*Session, error) {
	user, created, err := s.resolver.ResolveOrCreateOAuth(ctx, profile)
	if err != nil {
		return nil, err
	}
	session, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, audit.Entry{
		OrganizationID: user.OrganizationID,
		UserID:         user.ID,
		Action:         audit.ActionOAuthLogin,
		Meta:           map[string]any{"provider": string(profile.Provider), "created": created},
	})
	return session, nil
}

func (s *Service) RefreshTTL() time.Duration {
	return s.refresh.TTL()
}

// Audit writes outside the session path are best effort.
func (s *Service) recordAudit(ctx context.Context, e audit.Entry) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", e.Action, "error", err)
	}
}
