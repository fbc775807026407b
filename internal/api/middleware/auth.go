package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/auth"
)

type contextKey string

const (
	UserIDKey         contextKey = "user_id"
	OrganizationIDKey contextKey = "organization_id"
	UserEmailKey      contextKey = "user_email"
	UserRoleKey       contextKey = "user_role"
	GlobalRoleKey     contextKey = "global_role"
)

// Auth validates the bearer access token and puts its claims on the context.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Principal())))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(authHeader, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	// SSE clients cannot always set Authorization.
	return r.Header.Get("X-Auth-Token")
}

// WithPrincipal attaches the authenticated identity to ctx.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, p.UserID)
	ctx = context.WithValue(ctx, OrganizationIDKey, p.OrganizationID)
	ctx = context.WithValue(ctx, UserEmailKey, p.Email)
	ctx = context.WithValue(ctx, UserRoleKey, p.Role)
	ctx = context.WithValue(ctx, GlobalRoleKey, p.GlobalRole)
	return ctx
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetOrganizationID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(OrganizationIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

func GetGlobalRole(ctx context.Context) string {
	if role, ok := ctx.Value(GlobalRoleKey).(string); ok {
		return role
	}
	return ""
}
