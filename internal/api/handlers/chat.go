package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/chat"
)

type ChatHandler struct {
	chatService *chat.Service
	logger      *slog.Logger
}

func NewChatHandler(chatService *chat.Service, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{chatService: chatService, logger: logger}
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.chatService.ListConversations(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), dto.PaginationFromRequest(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	conv, err := h.chatService.CreateConversation(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), req.Title)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID, ok := urlUUID(w, r, "id", "conversation")
	if !ok {
		return
	}

	ctx := r.Context()
	messages, err := h.chatService.ListMessages(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), convID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID, ok := urlUUID(w, r, "id", "conversation")
	if !ok {
		return
	}
	var req dto.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	msg, err := h.chatService.SendMessage(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), convID, req.Text())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Ask streams the answer as server-sent events. Headers are committed on the
// first event, so lookup failures still get a normal JSON error.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	convID, ok := urlUUID(w, r, "id", "conversation")
	if !ok {
		return
	}
	var req dto.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	rc := http.NewResponseController(w)
	started := false
	emit := func(ev chat.Event) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		return writeEvent(w, rc, ev)
	}

	err := h.chatService.Ask(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), convID, req.Text(), emit)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		h.logger.DebugContext(ctx, "chat stream closed by client", "conversation_id", convID)
	case !started:
		writeError(w, r, h.logger, err)
	default:
		h.logger.ErrorContext(ctx, "chat stream failed", "conversation_id", convID, "error", err)
		_, _ = fmt.Fprint(w, "event: error\ndata: {\"error\":\"Internal server error\"}\n\n")
		_ = rc.Flush()
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, ev chat.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return rc.Flush()
}
