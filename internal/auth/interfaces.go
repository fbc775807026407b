package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database/models"
)

// Authenticator is the session lifecycle consumed by the HTTP layer.
type Authenticator interface {
	Signup(ctx context.Context, input SignupInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, rawRefresh string) (*Session, error)
	Logout(ctx context.Context, userID uuid.UUID, rawRefresh string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	OAuthLogin(ctx context.Context, profile OAuthProfile) (*Session, error)
	IssueSession(ctx context.Context, user *models.User) (*Session, error)
}

// TokenService issues and verifies access tokens.
type TokenService interface {
	GenerateToken(p Principal) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
	_ OAuthProvider = (*GoogleProvider)(nil)
	_ OAuthProvider = (*FacebookProvider)(nil)
)
