package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/api/validation"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/projects"
	"github.com/hugh/agentops/internal/rbac"
)

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BudgetCents int64  `json:"budgetCents"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if msg := validation.RequiredText(r.Name, "Name", validation.MaxNameLength); msg != "" {
		errors["name"] = msg
	}
	if msg := validation.OptionalText(r.Description, "Description", validation.MaxTextLength); msg != "" {
		errors["description"] = msg
	}
	if r.BudgetCents < 0 {
		errors["budgetCents"] = "Budget must not be negative"
	}

	return errors
}

func (r CreateProjectRequest) Input() projects.CreateInput {
	return projects.CreateInput{
		Name:        strings.TrimSpace(r.Name),
		Description: validation.SanitizeString(r.Description),
		BudgetCents: r.BudgetCents,
	}
}

type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	BudgetCents *int64  `json:"budgetCents"`
}

func (r UpdateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil {
		if msg := validation.RequiredText(*r.Name, "Name", validation.MaxNameLength); msg != "" {
			errors["name"] = msg
		}
	}
	if r.Description != nil {
		if msg := validation.OptionalText(*r.Description, "Description", validation.MaxTextLength); msg != "" {
			errors["description"] = msg
		}
	}
	if r.BudgetCents != nil && *r.BudgetCents < 0 {
		errors["budgetCents"] = "Budget must not be negative"
	}

	return errors
}

func (r UpdateProjectRequest) Input() projects.UpdateInput {
	in := projects.UpdateInput{Name: r.Name, BudgetCents: r.BudgetCents}
	if r.Description != nil {
		d := validation.SanitizeString(*r.Description)
		in.Description = &d
	}
	return in
}

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssigneeID  *uuid.UUID `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
}

func (r CreateTaskRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if msg := validation.RequiredText(r.Title, "Title", validation.MaxTitleLength); msg != "" {
		errors["title"] = msg
	}
	if msg := validation.OptionalText(r.Description, "Description", validation.MaxTextLength); msg != "" {
		errors["description"] = msg
	}

	return errors
}

func (r CreateTaskRequest) Input() projects.CreateTaskInput {
	return projects.CreateTaskInput{
		Title:       strings.TrimSpace(r.Title),
		Description: validation.SanitizeString(r.Description),
		AssigneeID:  r.AssigneeID,
		DueDate:     r.DueDate,
	}
}

type UpdateTaskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Status        *string    `json:"status"`
	AssigneeID    *uuid.UUID `json:"assigneeId"`
	ClearAssignee bool       `json:"clearAssignee"`
	DueDate       *time.Time `json:"dueDate"`
}

func (r UpdateTaskRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title != nil {
		if msg := validation.RequiredText(*r.Title, "Title", validation.MaxTitleLength); msg != "" {
			errors["title"] = msg
		}
	}
	if r.Status != nil && !models.TaskStatus(*r.Status).Valid() {
		errors["status"] = "Status must be one of todo, in_progress, done"
	}

	return errors
}

func (r UpdateTaskRequest) Input() projects.UpdateTaskInput {
	in := projects.UpdateTaskInput{
		Title:         r.Title,
		Description:   r.Description,
		AssigneeID:    r.AssigneeID,
		ClearAssignee: r.ClearAssignee,
		DueDate:       r.DueDate,
	}
	if r.Status != nil {
		s := models.TaskStatus(*r.Status)
		in.Status = &s
	}
	return in
}

type CreateExpenseRequest struct {
	Description string     `json:"description"`
	AmountCents int64      `json:"amountCents"`
	Category    string     `json:"category"`
	SpentAt     *time.Time `json:"spentAt"`
}

func (r CreateExpenseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if msg := validation.RequiredText(r.Description, "Description", validation.MaxTitleLength); msg != "" {
		errors["description"] = msg
	}
	if r.AmountCents <= 0 {
		errors["amountCents"] = "Amount must be positive"
	}
	if msg := validation.OptionalText(r.Category, "Category", 64); msg != "" {
		errors["category"] = msg
	}

	return errors
}

func (r CreateExpenseRequest) Input() projects.CreateExpenseInput {
	return projects.CreateExpenseInput{
		Description: strings.TrimSpace(r.Description),
		AmountCents: r.AmountCents,
		Category:    strings.TrimSpace(r.Category),
		SpentAt:     r.SpentAt,
	}
}

type ProjectMemberRequest struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role"`
}

func (r ProjectMemberRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.UserID == uuid.Nil {
		errors["userId"] = "User ID is required"
	}
	if _, ok := rbac.ParseProjectRole(r.Role); !ok {
		errors["role"] = "Role must be one of OWNER, EDITOR, VIEWER"
	}

	return errors
}

type ProjectInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r ProjectInviteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	validateEmail(errors, r.Email)
	if _, ok := rbac.ParseProjectRole(r.Role); !ok {
		errors["role"] = "Role must be one of OWNER, EDITOR, VIEWER"
	}

	return errors
}

type AcceptProjectInviteRequest struct {
	Token string `json:"token"`
}

func (r AcceptProjectInviteRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Token) == "" {
		errors["token"] = "Token is required"
	}
	return errors
}
