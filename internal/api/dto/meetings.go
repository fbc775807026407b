package dto

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/api/validation"
	"github.com/hugh/agentops/internal/meetings"
)

type CreateMeetingRequest struct {
	Title      string     `json:"title"`
	StartsAt   *time.Time `json:"startsAt"`
	EndsAt     *time.Time `json:"endsAt"`
	ProjectID  *uuid.UUID `json:"projectId"`
	MeetingURL string     `json:"meetingUrl"`
}

func (r CreateMeetingRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if msg := validation.RequiredText(r.Title, "Title", validation.MaxTitleLength); msg != "" {
		errors["title"] = msg
	}
	validateSchedule(errors, r.StartsAt, r.EndsAt)
	if r.MeetingURL != "" {
		u, err := url.Parse(r.MeetingURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errors["meetingUrl"] = "Meeting URL must be an http(s) URL"
		}
	}

	return errors
}

func (r CreateMeetingRequest) Input() meetings.CreateInput {
	return meetings.CreateInput{
		Title:      strings.TrimSpace(r.Title),
		StartsAt:   *r.StartsAt,
		EndsAt:     r.EndsAt,
		ProjectID:  r.ProjectID,
		MeetingURL: strings.TrimSpace(r.MeetingURL),
	}
}

type RescheduleMeetingRequest struct {
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

func (r RescheduleMeetingRequest) Validate() map[string]string {
	errors := make(map[string]string)
	validateSchedule(errors, r.StartsAt, r.EndsAt)
	return errors
}

type ReviewRequest struct {
	Title      string     `json:"title"`
	AssigneeID *uuid.UUID `json:"assigneeId"`
	DueDate    *time.Time `json:"dueDate"`
}

func (r ReviewRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if msg := validation.RequiredText(r.Title, "Title", validation.MaxTitleLength); msg != "" {
		errors["title"] = msg
	}
	return errors
}

func (r ReviewRequest) Input() meetings.ReviewInput {
	return meetings.ReviewInput{
		Title:      strings.TrimSpace(r.Title),
		AssigneeID: r.AssigneeID,
		DueDate:    r.DueDate,
	}
}

type UpdateActionItemRequest struct {
	Title      *string    `json:"title"`
	Status     *string    `json:"status"`
	AssigneeID *uuid.UUID `json:"assigneeId"`
	DueDate    *time.Time `json:"dueDate"`
}

func (r UpdateActionItemRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title != nil {
		if msg := validation.RequiredText(*r.Title, "Title", validation.MaxTitleLength); msg != "" {
			errors["title"] = msg
		}
	}
	if r.Status != nil && *r.Status != "open" && *r.Status != "done" {
		errors["status"] = "Status must be open or done"
	}

	return errors
}

func (r UpdateActionItemRequest) Input() meetings.UpdateActionItemInput {
	return meetings.UpdateActionItemInput{
		Title:      r.Title,
		Status:     r.Status,
		AssigneeID: r.AssigneeID,
		DueDate:    r.DueDate,
	}
}

func validateSchedule(errors map[string]string, startsAt, endsAt *time.Time) {
	if startsAt == nil || startsAt.IsZero() {
		errors["startsAt"] = "Start time is required"
		return
	}
	if !validation.IsValidTimeRange(*startsAt, endsAt) {
		errors["endsAt"] = "endsAt must be after startsAt"
	}
}
