package dto

import (
	"strings"
	"time"

	"github.com/hugh/agentops/internal/api/validation"
	"github.com/hugh/agentops/internal/integrations"
)

type ConnectIntegrationRequest struct {
	Config map[string]any `json:"config"`
}

func (r ConnectIntegrationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if len(r.Config) > 50 {
		errors["config"] = "Too many config keys"
	}
	return errors
}

type AuthURLResponse struct {
	URL string `json:"url"`
}

type CreateCalendarEventRequest struct {
	CalendarID  string     `json:"calendarId"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

func (r CreateCalendarEventRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if msg := validation.RequiredText(r.Summary, "Summary", validation.MaxTitleLength); msg != "" {
		errors["summary"] = msg
	}
	if msg := validation.OptionalText(r.Description, "Description", validation.MaxTextLength); msg != "" {
		errors["description"] = msg
	}
	switch {
	case r.Start == nil || r.Start.IsZero():
		errors["start"] = "Start time is required"
	case r.End == nil || r.End.IsZero():
		errors["end"] = "End time is required"
	case !r.End.After(*r.Start):
		errors["end"] = "end must be after start"
	}

	return errors
}

func (r CreateCalendarEventRequest) Input() integrations.CreateEventInput {
	return integrations.CreateEventInput{
		CalendarID:  strings.TrimSpace(r.CalendarID),
		Summary:     strings.TrimSpace(r.Summary),
		Description: r.Description,
		Start:       *r.Start,
		End:         *r.End,
	}
}
