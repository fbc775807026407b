package models

import (
	"time"

	"github.com/google/uuid"
)

// Integration is a catalog entry keyed by a stable slug such as "google-calendar".
type Integration struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Category    string `gorm:"size:32" json:"category"`
}

func (Integration) TableName() string {
	return "integrations"
}

const (
	ConnectionConnected    = "connected"
	ConnectionDisconnected = "disconnected"
)

// IntegrationConnection holds one organization's link to an integration.
// AccessToken and RefreshToken are age-encrypted.
type IntegrationConnection struct {
	Record
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_connections_org_integration" json:"organizationId"`
	IntegrationID  string     `gorm:"size:64;not null;uniqueIndex:idx_connections_org_integration" json:"integrationId"`
	Status         string     `gorm:"size:16;not null;default:'connected'" json:"status"`
	Config         string     `gorm:"type:text" json:"config"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	TokenExpiry    *time.Time `json:"tokenExpiry,omitempty"`
	AccountEmail   string     `json:"accountEmail,omitempty"`
	ConnectedBy    uuid.UUID  `gorm:"type:uuid" json:"connectedBy"`
}

func (IntegrationConnection) TableName() string {
	return "integration_connections"
}

type WebhookEvent struct {
	Record
	Event          string     `gorm:"size:64;index" json:"event"`
	Payload        string     `gorm:"type:text" json:"payload"`
	SignatureValid bool       `json:"signatureValid"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// IntegrationCatalog is the fixed set of integrations an organization can connect.
var IntegrationCatalog = []Integration{
	{ID: "google-calendar", Name: "Google Calendar", Description: "Sync meetings with Google Calendar", Category: "calendar"},
	{ID: "asana", Name: "Asana", Description: "Push action items to Asana projects", Category: "tasks"},
	{ID: "deepgram", Name: "Deepgram", Description: "Speech-to-text for meeting transcripts", Category: "transcription"},
	{ID: "recall", Name: "Recall.ai", Description: "Meeting bot that joins and records calls", Category: "meetings"},
}
