// Package chat stores per-user conversations and streams assistant answers.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

var ErrConversationNotFound = apperr.NotFound("Conversation not found")

const (
	defaultTitle         = "New conversation"
	defaultChunkInterval = 300 * time.Millisecond
)

type Service struct {
	db        *gorm.DB
	responder Responder
	interval  time.Duration
	logger    *slog.Logger
}

type Config struct {
	DB        *gorm.DB
	Responder Responder
	// ChunkInterval paces streamed chunks. Zero means 300ms.
	ChunkInterval time.Duration
	Logger        *slog.Logger
}

func NewService(cfg Config) *Service {
	s := &Service{
		db:        cfg.DB,
		responder: cfg.Responder,
		interval:  cfg.ChunkInterval,
		logger:    cfg.Logger,
	}
	if s.responder == nil {
		s.responder = PlaceholderResponder{}
	}
	if s.interval <= 0 {
		s.interval = defaultChunkInterval
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) ListConversations(ctx context.Context, orgID, userID uuid.UUID, p database.Pagination) (*database.Page[models.Conversation], error) {
	query := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID)
	return database.Paginate[models.Conversation](query, p, "updated_at DESC")
}

func (s *Service) CreateConversation(ctx context.Context, orgID, userID uuid.UUID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	conv := models.Conversation{OrganizationID: orgID, UserID: userID, Title: title}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &conv, nil
}

// GetConversation only finds conversations owned by userID inside orgID.
func (s *Service) GetConversation(ctx context.Context, orgID, userID, convID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ? AND user_id = ?", convID, orgID, userID).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (s *Service) ListMessages(ctx context.Context, orgID, userID, convID uuid.UUID) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, orgID, userID, convID); err != nil {
		return nil, err
	}
	return s.history(ctx, convID)
}

func (s *Service) history(ctx context.Context, convID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) SendMessage(ctx context.Context, orgID, userID, convID uuid.UUID, content string) (*models.Message, error) {
	if _, err := s.GetConversation(ctx, orgID, userID, convID); err != nil {
		return nil, err
	}
	return s.appendMessage(ctx, convID, models.MessageRoleUser, content)
}

func (s *Service) appendMessage(ctx context.Context, convID uuid.UUID, role, content string) (*models.Message, error) {
	msg := models.Message{ConversationID: convID, Role: role, Content: content}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", convID).
			Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}
	return &msg, nil
}
