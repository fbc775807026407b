package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/database/models"
	"gorm.io/gorm"
)

func (s *Service) Transcript(ctx context.Context, orgID, meetingID uuid.UUID) ([]models.TranscriptSegment, error) {
	if _, err := s.Get(ctx, orgID, meetingID); err != nil {
		return nil, err
	}
	var segments []models.TranscriptSegment
	if err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("start_ms ASC").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("loading transcript: %w", err)
	}
	return segments, nil
}

// TimelineEntry is one point on a meeting's timeline: either a transcript
// segment or an action item raised during review.
type TimelineEntry struct {
	Kind       string                    `json:"kind"`
	AtMs       int64                     `json:"atMs"`
	Segment    *models.TranscriptSegment `json:"segment,omitempty"`
	ActionItem *models.ActionItem        `json:"actionItem,omitempty"`
}

// Timeline interleaves transcript segments by offset, followed by the action
// items in creation order.
func (s *Service) Timeline(ctx context.Context, orgID, meetingID uuid.UUID) ([]TimelineEntry, error) {
	segments, err := s.Transcript(ctx, orgID, meetingID)
	if err != nil {
		return nil, err
	}
	items, err := s.actionItems(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(segments)+len(items))
	var last int64
	for i := range segments {
		entries = append(entries, TimelineEntry{Kind: "segment", AtMs: segments[i].StartMs, Segment: &segments[i]})
		last = segments[i].EndMs
	}
	for i := range items {
		entries = append(entries, TimelineEntry{Kind: "action_item", AtMs: last, ActionItem: &items[i]})
	}
	return entries, nil
}

type Insights struct {
	Segments        int64 `json:"segments"`
	ActionItems     int64 `json:"actionItems"`
	OpenActionItems int64 `json:"openActionItems"`
	Speakers        int64 `json:"speakers"`
	DurationMs      int64 `json:"durationMs"`
}

func (s *Service) Insights(ctx context.Context, orgID, meetingID uuid.UUID) (*Insights, error) {
	if _, err := s.Get(ctx, orgID, meetingID); err != nil {
		return nil, err
	}

	var in Insights
	db := s.db.WithContext(ctx)
	segments := db.Model(&models.TranscriptSegment{}).Where("meeting_id = ?", meetingID)
	if err := segments.Session(&gorm.Session{}).Count(&in.Segments).Error; err != nil {
		return nil, err
	}
	if err := segments.Session(&gorm.Session{}).Distinct("speaker").Count(&in.Speakers).Error; err != nil {
		return nil, err
	}
	if err := segments.Session(&gorm.Session{}).Select("COALESCE(MAX(end_ms), 0)").Scan(&in.DurationMs).Error; err != nil {
		return nil, err
	}

	items := db.Model(&models.ActionItem{}).Where("meeting_id = ?", meetingID)
	if err := items.Session(&gorm.Session{}).Count(&in.ActionItems).Error; err != nil {
		return nil, err
	}
	if err := items.Session(&gorm.Session{}).Where("status = ?", models.ActionItemOpen).Count(&in.OpenActionItems).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

// Segment is a transcript line as delivered by the transcription webhook.
type Segment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
}

// ApplyTranscript replaces the meeting transcript and marks it ready. Meetings
// are looked up without an organization scope because webhooks carry none.
func (s *Service) ApplyTranscript(ctx context.Context, meetingID uuid.UUID, segments []Segment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meeting models.Meeting
		if err := tx.First(&meeting, "id = ?", meetingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMeetingNotFound
			}
			return err
		}

		if err := tx.Where("meeting_id = ?", meetingID).Delete(&models.TranscriptSegment{}).Error; err != nil {
			return err
		}
		if len(segments) > 0 {
			rows := make([]models.TranscriptSegment, len(segments))
			for i, seg := range segments {
				rows[i] = models.TranscriptSegment{
					MeetingID: meetingID,
					Speaker:   seg.Speaker,
					Text:      seg.Text,
					StartMs:   seg.StartMs,
					EndMs:     seg.EndMs,
				}
			}
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}
		}
		return tx.Model(&meeting).Update("transcript_ready", true).Error
	})
}

// MarkBotJoined records that the recording bot is in the call.
func (s *Service) MarkBotJoined(ctx context.Context, meetingID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Meeting{}).
		Where("id = ?", meetingID).
		Updates(map[string]interface{}{"bot_status": models.BotStatusJoined, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMeetingNotFound
	}
	return nil
}
