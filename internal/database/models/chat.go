package models

import "github.com/google/uuid"

type Conversation struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizationId"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Title          string    `json:"title"`
}

func (Conversation) TableName() string {
	return "conversations"
}

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

type Message struct {
	Record
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversationId"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"type:text" json:"content"`
}

func (Message) TableName() string {
	return "messages"
}
