package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
)

var ErrInvalidInviteToken = apperr.BadRequest("Invalid or expired invitation")

type InviteKind string

const (
	InviteOrganization InviteKind = "org"
	InviteProject      InviteKind = "project"
)

// InvitePayload is the signed body of an invitation token. Exactly one of
// OrganizationID or ProjectID is set, matching Kind.
type InvitePayload struct {
	Kind             InviteKind `json:"kind"`
	OrganizationID   *uuid.UUID `json:"organizationId,omitempty"`
	ProjectID        *uuid.UUID `json:"projectId,omitempty"`
	Email            string     `json:"email"`
	Role             string     `json:"role,omitempty"`
	ExpiresAtEpochMs int64      `json:"expiresAtEpochMs"`
	Nonce            string     `json:"nonce"`
}

func (p *InvitePayload) ExpiresAt() time.Time {
	return time.UnixMilli(p.ExpiresAtEpochMs)
}

// InviteCodec produces self-verifying invitation tokens of the form
// base64url(payload) "." hex(hmac-sha256(secret, base64url(payload))).
type InviteCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewInviteCodec(secret string, ttl time.Duration) *InviteCodec {
	return &InviteCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// NewPayload builds a payload expiring after the codec TTL.
func (c *InviteCodec) NewPayload(kind InviteKind, targetID uuid.UUID, email, role string) InvitePayload {
	p := InvitePayload{
		Kind:             kind,
		Email:            strings.ToLower(strings.TrimSpace(email)),
		Role:             role,
		ExpiresAtEpochMs: c.now().Add(c.ttl).UnixMilli(),
		Nonce:            uuid.NewString(),
	}
	id := targetID
	if kind == InviteProject {
		p.ProjectID = &id
	} else {
		p.OrganizationID = &id
	}
	return p
}

func (c *InviteCodec) Encode(p InvitePayload) (string, error) {
	if p.Nonce == "" {
		p.Nonce = uuid.NewString()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	segment := base64.RawURLEncoding.EncodeToString(body)
	return segment + "." + c.sign(segment), nil
}

// Decode verifies the signature in constant time, then the expiry.
func (c *InviteCodec) Decode(token string) (*InvitePayload, error) {
	segment, sig, ok := strings.Cut(token, ".")
	if !ok || segment == "" || sig == "" {
		return nil, ErrInvalidInviteToken
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return nil, ErrInvalidInviteToken
	}
	want, _ := hex.DecodeString(c.sign(segment))
	if !hmac.Equal(got, want) {
		return nil, ErrInvalidInviteToken
	}

	body, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, ErrInvalidInviteToken
	}
	var p InvitePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ErrInvalidInviteToken
	}

	if c.now().UnixMilli() >= p.ExpiresAtEpochMs {
		return nil, ErrInvalidInviteToken
	}
	switch p.Kind {
	case InviteOrganization:
		if p.OrganizationID == nil {
			return nil, ErrInvalidInviteToken
		}
	case InviteProject:
		if p.ProjectID == nil {
			return nil, ErrInvalidInviteToken
		}
	default:
		return nil, ErrInvalidInviteToken
	}

	return &p, nil
}

func (c *InviteCodec) sign(segment string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(segment))
	return hex.EncodeToString(mac.Sum(nil))
}
