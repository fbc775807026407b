package dto

import (
	"strings"

	"github.com/hugh/agentops/internal/api/validation"
)

type CreateConversationRequest struct {
	Title string `json:"title"`
}

func (r CreateConversationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if msg := validation.OptionalText(r.Title, "Title", validation.MaxTitleLength); msg != "" {
		errors["title"] = msg
	}
	return errors
}

// MessageRequest is the body of both plain messages and streamed questions.
type MessageRequest struct {
	Content string `json:"content"`
}

func (r MessageRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if msg := validation.RequiredText(r.Content, "Content", validation.MaxTextLength); msg != "" {
		errors["content"] = msg
	}
	return errors
}

func (r MessageRequest) Text() string {
	return strings.TrimSpace(validation.SanitizeString(r.Content))
}
