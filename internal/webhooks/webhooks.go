// Package webhooks authenticates inbound meeting-provider callbacks, stores
// them and applies them to meetings from the worker.
package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/meetings"
	"github.com/hugh/agentops/pkg/queue"
	"gorm.io/gorm"
)

const (
	EventTranscriptReady = "meeting_transcript_ready"
	EventBotJoined       = "meeting_bot_joined"

	// TypeProcess is the asynq task that applies a stored event.
	TypeProcess = "webhook:process"

	SignatureHeader = "X-Signature"

	maxStoredInvalidPayload = 4096
	maxEventLength          = 64
)

var (
	ErrInvalidSignature = apperr.Unauthorized("Invalid signature")
	ErrMissingEvent     = apperr.BadRequest("Missing event type")
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db       *gorm.DB
	secret   []byte
	queue    Enqueuer
	meetings *meetings.Service
	logger   *slog.Logger
}

// NewService builds the webhook service. With a nil queue events are applied
// inline as they are received.
func NewService(db *gorm.DB, secret string, queue Enqueuer, meetingSvc *meetings.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, secret: []byte(secret), queue: queue, meetings: meetingSvc, logger: logger}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against body in constant time. An unset secret
// rejects everything.
func (s *Service) Verify(body []byte, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(s.secret, body))
	return hmac.Equal(got, want)
}

type envelope struct {
	Event string `json:"event"`
}

// Receive authenticates and stores one delivery, then schedules it. event
// may be empty, in which case the body's "event" field names it. Deliveries
// with a bad signature are kept, truncated, for inspection and never applied.
func (s *Service) Receive(ctx context.Context, event string, body []byte, signature string) (*models.WebhookEvent, error) {
	if event == "" {
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil {
			event = env.Event
		}
	}

	if !s.Verify(body, signature) {
		rejected := models.WebhookEvent{
			Event:          truncate(event, maxEventLength),
			Payload:        truncate(string(body), maxStoredInvalidPayload),
			SignatureValid: false,
		}
		if err := s.db.WithContext(ctx).Create(&rejected).Error; err != nil {
			s.logger.WarnContext(ctx, "storing rejected webhook failed", "error", err)
		}
		return nil, ErrInvalidSignature
	}
	if event == "" {
		return nil, ErrMissingEvent
	}

	ev := models.WebhookEvent{Event: truncate(event, maxEventLength), Payload: string(body), SignatureValid: true}
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("storing webhook: %w", err)
	}

	if s.queue == nil {
		if err := s.Process(ctx, ev.ID); err != nil {
			return nil, err
		}
		return &ev, nil
	}

	task, err := NewProcessTask(ev.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.Queue(queue.Default)); err != nil {
		return nil, fmt.Errorf("enqueueing webhook: %w", err)
	}
	return &ev, nil
}

type ProcessPayload struct {
	EventID uuid.UUID `json:"event_id"`
}

func NewProcessTask(eventID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(ProcessPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcess, data, asynq.MaxRetry(10)), nil
}

type transcriptReady struct {
	MeetingID uuid.UUID          `json:"meetingId"`
	Segments  []meetings.Segment `json:"segments"`
}

type botJoined struct {
	MeetingID uuid.UUID `json:"meetingId"`
}

// Process applies a stored event once. Events that can never succeed (bad
// payload, unknown meeting, unknown type) are marked processed with the
// reason; anything else is returned so the task is retried.
func (s *Service) Process(ctx context.Context, eventID uuid.UUID) error {
	var ev models.WebhookEvent
	if err := s.db.WithContext(ctx).First(&ev, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.WarnContext(ctx, "webhook event vanished", "event_id", eventID)
			return nil
		}
		return err
	}
	if ev.ProcessedAt != nil || !ev.SignatureValid {
		return nil
	}

	err := s.apply(ctx, &ev)
	var appErr *apperr.Error
	switch {
	case err == nil:
		return s.markProcessed(ctx, ev.ID, "")
	case errors.As(err, &appErr):
		s.logger.WarnContext(ctx, "webhook dropped", "event_id", ev.ID, "event", ev.Event, "reason", appErr.Message)
		return s.markProcessed(ctx, ev.ID, appErr.Message)
	default:
		return err
	}
}

func (s *Service) apply(ctx context.Context, ev *models.WebhookEvent) error {
	switch ev.Event {
	case EventTranscriptReady:
		var p transcriptReady
		if err := json.Unmarshal([]byte(ev.Payload), &p); err != nil || p.MeetingID == uuid.Nil {
			return apperr.BadRequest("Malformed transcript payload")
		}
		if err := s.meetings.ApplyTranscript(ctx, p.MeetingID, p.Segments); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "transcript stored", "meeting_id", p.MeetingID, "segments", len(p.Segments))
		return nil

	case EventBotJoined:
		var p botJoined
		if err := json.Unmarshal([]byte(ev.Payload), &p); err != nil || p.MeetingID == uuid.Nil {
			return apperr.BadRequest("Malformed bot payload")
		}
		return s.meetings.MarkBotJoined(ctx, p.MeetingID)

	default:
		return apperr.BadRequest("Unhandled event " + ev.Event)
	}
}

func (s *Service) markProcessed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"processed_at": time.Now().UTC(), "error": reason}).Error
}

// truncate returns valid UTF-8 of at most n bytes. Invalid sequences become
// U+FFFD and cuts land on a rune boundary.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
