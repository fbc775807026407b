package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizationId"`
	Name           string    `gorm:"not null" json:"name"`
	Description    string    `json:"description"`
	BudgetCents    int64     `gorm:"not null;default:0" json:"budgetCents"`
	CreatedBy      uuid.UUID `gorm:"type:uuid" json:"createdBy"`
}

func (Project) TableName() string {
	return "projects"
}

type ProjectMember struct {
	Record
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_members_user_project" json:"userId"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_members_user_project;index" json:"projectId"`
	Role      string    `gorm:"size:16;not null" json:"role"` // OWNER, EDITOR, VIEWER

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}

type ProjectInvite struct {
	Record
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_invites_project_email" json:"projectId"`
	Email     string    `gorm:"size:320;not null;uniqueIndex:idx_project_invites_project_email" json:"email"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	TokenHash string    `gorm:"size:64;index" json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	InvitedBy uuid.UUID `gorm:"type:uuid" json:"invitedBy"`
}

func (ProjectInvite) TableName() string {
	return "project_invites"
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type Task struct {
	Base
	ProjectID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"projectId"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `gorm:"size:16;not null;default:'todo'" json:"status"`
	AssigneeID  *uuid.UUID `gorm:"type:uuid" json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid" json:"createdBy"`
}

func (Task) TableName() string {
	return "tasks"
}

type Expense struct {
	Base
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index" json:"projectId"`
	Description string    `gorm:"not null" json:"description"`
	AmountCents int64     `gorm:"not null" json:"amountCents"`
	Category    string    `gorm:"size:64;default:'general'" json:"category"`
	SpentAt     time.Time `json:"spentAt"`
	CreatedBy   uuid.UUID `gorm:"type:uuid" json:"createdBy"`
}

func (Expense) TableName() string {
	return "expenses"
}
