// Package tasks wires the worker's asynq handlers.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/webhooks"
)

type Handler struct {
	mailer   mail.Mailer
	webhooks *webhooks.Service
	logger   *slog.Logger
}

// NewHandler takes the mailer that actually delivers (SMTP or log), never a
// queue-backed one.
func NewHandler(mailer mail.Mailer, webhookSvc *webhooks.Service, logger *slog.Logger) *Handler {
	return &Handler{mailer: mailer, webhooks: webhookSvc, logger: logger}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(mail.TypeSend, h.HandleSendMail)
	mux.HandleFunc(webhooks.TypeProcess, h.HandleWebhookProcess)
}

func (h *Handler) HandleSendMail(ctx context.Context, t *asynq.Task) error {
	var msg mail.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if msg.To == "" {
		return fmt.Errorf("mail without recipient: %w", asynq.SkipRetry)
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return err
	}
	h.logger.Info("mail delivered", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (h *Handler) HandleWebhookProcess(ctx context.Context, t *asynq.Task) error {
	var payload webhooks.ProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := h.webhooks.Process(ctx, payload.EventID); err != nil {
		h.logger.Error("webhook processing failed", "event_id", payload.EventID, "error", err)
		return err
	}
	return nil
}
