package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BotStatusNone    = "none"
	BotStatusInvited = "invited"
	BotStatusJoined  = "joined"
)

type Meeting struct {
	Base
	OrganizationID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"organizationId"`
	ProjectID       *uuid.UUID `gorm:"type:uuid;index" json:"projectId,omitempty"`
	Title           string     `gorm:"not null" json:"title"`
	StartsAt        time.Time  `gorm:"index" json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	MeetingURL      string     `json:"meetingUrl"`
	BotStatus       string     `gorm:"size:16;not null;default:'none'" json:"botStatus"`
	TranscriptReady bool       `gorm:"not null;default:false" json:"transcriptReady"`
	CreatedBy       uuid.UUID  `gorm:"type:uuid" json:"createdBy"`
}

func (Meeting) TableName() string {
	return "meetings"
}

const (
	ActionItemOpen = "open"
	ActionItemDone = "done"
)

type ActionItem struct {
	Base
	MeetingID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"meetingId"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organizationId"`
	Title          string     `gorm:"not null" json:"title"`
	Status         string     `gorm:"size:16;not null;default:'open'" json:"status"`
	AssigneeID     *uuid.UUID `gorm:"type:uuid" json:"assigneeId,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
}

func (ActionItem) TableName() string {
	return "action_items"
}

type TranscriptSegment struct {
	Record
	MeetingID uuid.UUID `gorm:"type:uuid;not null;index" json:"meetingId"`
	Speaker   string    `json:"speaker"`
	Text      string    `gorm:"type:text" json:"text"`
	StartMs   int64     `json:"startMs"`
	EndMs     int64     `json:"endMs"`
}

func (TranscriptSegment) TableName() string {
	return "transcript_segments"
}
