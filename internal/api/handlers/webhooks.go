package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/webhooks"
)

type WebhookHandler struct {
	webhookService *webhooks.Service
	logger         *slog.Logger
}

func NewWebhookHandler(webhookService *webhooks.Service, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{webhookService: webhookService, logger: logger}
}

type webhookAck struct {
	Received bool   `json:"received"`
	ID       string `json:"id"`
}

// Receive handles both /webhooks/meetings, where the body names the event,
// and /webhooks/{event}. The signature covers the raw body, so it is read
// before any decoding.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Payload too large"})
		return
	}

	ev, err := h.webhookService.Receive(r.Context(), chi.URLParam(r, "event"), body, r.Header.Get(webhooks.SignatureHeader))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookAck{Received: true, ID: ev.ID.String()})
}
