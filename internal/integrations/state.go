package integrations

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
)

var ErrInvalidState = apperr.BadRequest("Invalid or expired OAuth state")

const (
	stateAudience = "google-calendar-connect"
	stateTTL      = 10 * time.Minute
)

type stateClaims struct {
	OrganizationID string `json:"org"`
	jwt.RegisteredClaims
}

// stateSigner binds an OAuth round trip to the organization and user that
// started it. The state survives the redirect through Google unchanged.
type stateSigner struct {
	secret []byte
	now    func() time.Time
}

func (s *stateSigner) sign(orgID, userID uuid.UUID) (string, error) {
	now := s.now()
	claims := stateClaims{
		OrganizationID: orgID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *stateSigner) verify(state string) (orgID, userID uuid.UUID, err error) {
	var claims stateClaims
	_, err = jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidState
	}
	if orgID, err = uuid.Parse(claims.OrganizationID); err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidState
	}
	if userID, err = uuid.Parse(claims.Subject); err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidState
	}
	return orgID, userID, nil
}
