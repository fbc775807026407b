// Package integrations tracks which third-party integrations an
// organization has connected and talks to Google Calendar on its behalf.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrIntegrationNotFound = apperr.NotFound("Integration not found")

type Service struct {
	db     *gorm.DB
	audit  *audit.Logger
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, audit: audit.NewLogger(db), logger: logger}
}

// CatalogEntry is a catalog integration decorated with the caller's status.
type CatalogEntry struct {
	models.Integration
	Status       string     `json:"status"`
	AccountEmail string     `json:"accountEmail,omitempty"`
	ConnectedAt  *time.Time `json:"connectedAt,omitempty"`
}

func (s *Service) Catalog(ctx context.Context, orgID uuid.UUID) ([]CatalogEntry, error) {
	var catalog []models.Integration
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	var conns []models.IntegrationConnection
	if err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("loading connections: %w", err)
	}
	byID := make(map[string]models.IntegrationConnection, len(conns))
	for _, c := range conns {
		byID[c.IntegrationID] = c
	}

	out := make([]CatalogEntry, len(catalog))
	for i, integ := range catalog {
		out[i] = CatalogEntry{Integration: integ, Status: models.ConnectionDisconnected}
		if c, ok := byID[integ.ID]; ok {
			out[i].Status = c.Status
			if c.Status == models.ConnectionConnected {
				out[i].AccountEmail = c.AccountEmail
				updated := c.UpdatedAt
				out[i].ConnectedAt = &updated
			}
		}
	}
	return out, nil
}

func (s *Service) lookup(ctx context.Context, integrationID string) (*models.Integration, error) {
	var integ models.Integration
	if err := s.db.WithContext(ctx).First(&integ, "id = ?", integrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return &integ, nil
}

// Connect upserts the (organization, integration) connection as connected
// with the given settings.
func (s *Service) Connect(ctx context.Context, orgID, userID uuid.UUID, integrationID string, settings map[string]any) (*models.IntegrationConnection, error) {
	if _, err := s.lookup(ctx, integrationID); err != nil {
		return nil, err
	}
	raw := "{}"
	if len(settings) > 0 {
		b, err := json.Marshal(settings)
		if err != nil {
			return nil, apperr.BadRequest("Invalid integration config")
		}
		raw = string(b)
	}

	conn := models.IntegrationConnection{
		OrganizationID: orgID,
		IntegrationID:  integrationID,
		Status:         models.ConnectionConnected,
		Config:         raw,
		ConnectedBy:    userID,
	}
	if err := s.upsert(ctx, &conn, "status", "config", "connected_by", "updated_at"); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionIntegrationConnect,
		Meta:           map[string]any{"integrationId": integrationID},
	})
	return s.connection(ctx, orgID, integrationID)
}

func (s *Service) upsert(ctx context.Context, conn *models.IntegrationConnection, columns ...string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "integration_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("storing connection: %w", err)
	}
	return nil
}

// Disconnect marks the connection disconnected and drops any stored tokens.
func (s *Service) Disconnect(ctx context.Context, orgID, userID uuid.UUID, integrationID string) error {
	if _, err := s.lookup(ctx, integrationID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.IntegrationConnection{}).
		Where("organization_id = ? AND integration_id = ?", orgID, integrationID).
		Updates(map[string]interface{}{
			"status":        models.ConnectionDisconnected,
			"access_token":  "",
			"refresh_token": "",
			"token_expiry":  nil,
			"account_email": "",
		})
	if res.Error != nil {
		return fmt.Errorf("disconnecting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	s.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionIntegrationRemove,
		Meta:           map[string]any{"integrationId": integrationID},
	})
	return nil
}

type Status struct {
	IntegrationID string     `json:"integrationId"`
	Status        string     `json:"status"`
	AccountEmail  string     `json:"accountEmail,omitempty"`
	TokenExpiry   *time.Time `json:"tokenExpiry,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

func (s *Service) Status(ctx context.Context, orgID uuid.UUID, integrationID string) (*Status, error) {
	if _, err := s.lookup(ctx, integrationID); err != nil {
		return nil, err
	}
	st := &Status{IntegrationID: integrationID, Status: models.ConnectionDisconnected}
	conn, err := s.connection(ctx, orgID, integrationID)
	if errors.Is(err, errNoConnection) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.Status = conn.Status
	st.AccountEmail = conn.AccountEmail
	st.TokenExpiry = conn.TokenExpiry
	updated := conn.UpdatedAt
	st.UpdatedAt = &updated
	return st, nil
}

var errNoConnection = errors.New("no connection")

func (s *Service) connection(ctx context.Context, orgID uuid.UUID, integrationID string) (*models.IntegrationConnection, error) {
	var conn models.IntegrationConnection
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND integration_id = ?", orgID, integrationID).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNoConnection
		}
		return nil, err
	}
	return &conn, nil
}

func (s *Service) recordAudit(ctx context.Context, e audit.Entry) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", e.Action, "error", err)
	}
}
