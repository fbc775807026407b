package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/pkg/crypto"
	"gorm.io/gorm"
)

var ErrInvalidRefreshToken = apperr.Unauthorized("Invalid refresh token")

const refreshTokenBytes = 32

// RefreshStore issues and rotates refresh tokens. The raw value goes to the
// client; only its sha256 is stored.
type RefreshStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewRefreshStore(db *gorm.DB, ttl time.Duration) *RefreshStore {
	return &RefreshStore{db: db, ttl: ttl, now: time.Now}
}

func (s *RefreshStore) TTL() time.Duration {
	return s.ttl
}

func (s *RefreshStore) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.issueTx(s.db.WithContext(ctx), userID)
}

func (s *RefreshStore) issueTx(tx *gorm.DB, userID uuid.UUID) (string, error) {
	raw, err := crypto.RandomHex(refreshTokenBytes)
	if err != nil {
		return "", err
	}

	row := models.RefreshToken{
		UserID:    userID,
		TokenHash: crypto.SHA256Hex(raw),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := tx.Create(&row).Error; err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	return raw, nil
}

// Rotate consumes raw and returns a replacement plus the owning user.
// The delete is conditioned on the row still existing, so of two concurrent
// rotations of the same raw value exactly one observes RowsAffected == 1.
func (s *RefreshStore) Rotate(ctx context.Context, raw string) (string, *models.User, error) {
	if raw == "" {
		return "", nil, ErrInvalidRefreshToken
	}
	hash := crypto.SHA256Hex(raw)

	var next string
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.RefreshToken
		if err := tx.Where("token_hash = ? AND expires_at > ?", hash, s.now()).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		res := tx.Where("id = ? AND token_hash = ?", current.ID, hash).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidRefreshToken
		}

		if err := tx.Preload("Organization").First(&user, "id = ?", current.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		var err error
		next, err = s.issueTx(tx, current.UserID)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return next, &user, nil
}

// Revoke deletes userID's token matching raw. Unknown tokens and tokens owned
// by someone else are ignored.
func (s *RefreshStore) Revoke(ctx context.Context, userID uuid.UUID, raw string) error {
	return s.db.WithContext(ctx).
		Where("token_hash = ? AND user_id = ?", crypto.SHA256Hex(raw), userID).
		Delete(&models.RefreshToken{}).Error
}

func (s *RefreshStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return revokeAllTx(s.db.WithContext(ctx), userID)
}

func revokeAllTx(tx *gorm.DB, userID uuid.UUID) error {
	return tx.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}
