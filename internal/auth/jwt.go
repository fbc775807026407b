package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
)

var (
	ErrInvalidToken = apperr.Unauthorized("invalid token")
	ErrExpiredToken = apperr.Unauthorized("token has expired")
)

const issuer = "agentops"

// Principal is the identity carried by an access token.
type Principal struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Email          string
	Role           string
	GlobalRole     string
}

func PrincipalFromUser(u *models.User) Principal {
	p := Principal{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		Email:          u.Email,
		Role:           u.Role,
	}
	if u.GlobalRole != nil {
		p.GlobalRole = *u.GlobalRole
	}
	return p
}

// Claims is the access token body. The user id travels in "sub".
type Claims struct {
	Email          string    `json:"email"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Role           string    `json:"role"`
	GlobalRole     string    `json:"globalRole,omitempty"`
	jwt.RegisteredClaims

	UserID uuid.UUID `json:"-"`
}

type JWTService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(secret string, expiry time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		expiry: expiry,
	}
}

func (s *JWTService) Expiry() time.Duration {
	return s.expiry
}

func (s *JWTService) GenerateToken(p Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:          p.Email,
		OrganizationID: p.OrganizationID,
		Role:           p.Role,
		GlobalRole:     p.GlobalRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   p.UserID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken checks signature and expiry only. There is no revocation
// list for access tokens.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims.UserID = userID

	return claims, nil
}

func (c *Claims) Principal() Principal {
	return Principal{
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		Email:          c.Email,
		Role:           c.Role,
		GlobalRole:     c.GlobalRole,
	}
}
