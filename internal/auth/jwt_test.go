package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrincipal() auth.Principal {
	return auth.Principal{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		Email:          "test@example.com",
		Role:           "ADMIN",
	}
}

func TestJWTService_GenerateToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 15*time.Minute)
	p := testPrincipal()

	t.Run("generates valid token", func(t *testing.T) {
		token, err := jwtService.GenerateToken(p)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		claims, err := jwtService.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, p.UserID, claims.UserID)
		assert.Equal(t, p.OrganizationID, claims.OrganizationID)
		assert.Equal(t, p.Email, claims.Email)
		assert.Equal(t, p.Role, claims.Role)
		assert.Empty(t, claims.GlobalRole)
	})

	t.Run("user id travels in subject", func(t *testing.T) {
		token, err := jwtService.GenerateToken(p)
		require.NoError(t, err)

		claims, err := jwtService.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, p.UserID.String(), claims.Subject)
		assert.Equal(t, "agentops", claims.Issuer)
	})

	t.Run("carries global role when set", func(t *testing.T) {
		withGlobal := p
		withGlobal.GlobalRole = "PROJECT_MANAGER"

		token, err := jwtService.GenerateToken(withGlobal)
		require.NoError(t, err)

		claims, err := jwtService.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "PROJECT_MANAGER", claims.GlobalRole)
		assert.Equal(t, withGlobal, claims.Principal())
	})

	t.Run("expiry follows configured ttl", func(t *testing.T) {
		token, err := jwtService.GenerateToken(p)
		require.NoError(t, err)

		claims, err := jwtService.ValidateToken(token)
		require.NoError(t, err)
		ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
		assert.Equal(t, 15*time.Minute, ttl)
	})
}

func TestJWTService_ValidateToken(t *testing.T) {
	p := testPrincipal()

	t.Run("rejects expired token", func(t *testing.T) {
		jwtService := auth.NewJWTService("test-secret", -time.Minute)

		token, err := jwtService.GenerateToken(p)
		require.NoError(t, err)

		_, err = jwtService.ValidateToken(token)
		assert.Equal(t, auth.ErrExpiredToken, err)
	})

	t.Run("rejects tampered token", func(t *testing.T) {
		jwtService := auth.NewJWTService("test-secret", time.Hour)

		token, err := jwtService.GenerateToken(p)
		require.NoError(t, err)

		_, err = jwtService.ValidateToken(token + "tampered")
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("rejects token signed with different secret", func(t *testing.T) {
		token, err := auth.NewJWTService("secret-1", time.Hour).GenerateToken(p)
		require.NoError(t, err)

		_, err = auth.NewJWTService("secret-2", time.Hour).ValidateToken(token)
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		jwtService := auth.NewJWTService("test-secret", time.Hour)

		_, err := jwtService.ValidateToken("not-a-valid-jwt")
		assert.Equal(t, auth.ErrInvalidToken, err)
	})

	t.Run("rejects empty token", func(t *testing.T) {
		jwtService := auth.NewJWTService("test-secret", time.Hour)

		_, err := jwtService.ValidateToken("")
		assert.Equal(t, auth.ErrInvalidToken, err)
	})
}

func TestJWTService_DifferentRoles(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", time.Hour)

	for _, role := range []string{"ADMIN", "PM", "MEMBER"} {
		t.Run("handles "+role+" role", func(t *testing.T) {
			p := testPrincipal()
			p.Role = role

			token, err := jwtService.GenerateToken(p)
			require.NoError(t, err)

			claims, err := jwtService.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, role, claims.Role)
		})
	}
}
