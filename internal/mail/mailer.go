// Package mail sends transactional email (password resets and invitations).
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/pkg/config"
	"github.com/hugh/agentops/pkg/queue"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text,omitempty"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when SMTP_HOST is configured, otherwise a
// LogSender that writes messages to the logger.
func New(cfg config.SMTPConfig, logger *slog.Logger) (Mailer, error) {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not set, mail will be logged instead of sent")
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(cfg)
}

// LogSender is the development fallback.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return nil
}

// TypeSend is the asynq task type carrying a Message.
const TypeSend = "mail:send"

func NewSendTask(msg Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSend, data, asynq.MaxRetry(5)), nil
}

// QueueSender hands messages to the worker. Send fails only when the
// message cannot be enqueued.
type QueueSender struct {
	client *asynq.Client
}

func NewQueueSender(client *asynq.Client) *QueueSender {
	return &QueueSender{client: client}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	task, err := NewSendTask(msg)
	if err != nil {
		return fmt.Errorf("building mail task: %w", err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(queue.Critical)); err != nil {
		return fmt.Errorf("enqueueing mail: %w", err)
	}
	return nil
}
