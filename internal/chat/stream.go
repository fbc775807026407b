package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database/models"
)

// Responder produces the chunks of an assistant answer.
type Responder interface {
	Respond(ctx context.Context, history []models.Message, question string) ([]string, error)
}

// PlaceholderResponder answers every question with five numbered chunks.
// It stands in until a model backend is configured.
type PlaceholderResponder struct{}

func (PlaceholderResponder) Respond(ctx context.Context, history []models.Message, question string) ([]string, error) {
	chunks := make([]string, 5)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("message-%d", i+1)
	}
	return chunks, nil
}

// Event is one server-sent event of an Ask stream. Exactly one of Chunk or
// Done is meaningful.
type Event struct {
	Chunk     string     `json:"chunk,omitempty"`
	Done      bool       `json:"done,omitempty"`
	MessageID *uuid.UUID `json:"messageId,omitempty"`
}

// Ask stores the question, emits the answer chunk by chunk at the configured
// interval, stores the assembled answer and emits a final done event. It
// returns ctx.Err() when the client goes away mid-stream; nothing is stored
// for the assistant in that case.
func (s *Service) Ask(ctx context.Context, orgID, userID, convID uuid.UUID, question string, emit func(Event) error) error {
	if _, err := s.GetConversation(ctx, orgID, userID, convID); err != nil {
		return err
	}
	if _, err := s.appendMessage(ctx, convID, models.MessageRoleUser, question); err != nil {
		return err
	}

	history, err := s.history(ctx, convID)
	if err != nil {
		return err
	}
	chunks, err := s.responder.Respond(ctx, history, question)
	if err != nil {
		return fmt.Errorf("generating answer: %w", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(Event{Chunk: chunk}); err != nil {
			return err
		}
	}

	reply, err := s.appendMessage(ctx, convID, models.MessageRoleAssistant, strings.Join(chunks, " "))
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "assistant answer stored", "conversation_id", convID, "chunks", len(chunks))
	return emit(Event{Done: true, MessageID: &reply.ID})
}
