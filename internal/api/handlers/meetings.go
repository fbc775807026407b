package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/meetings"
)

type MeetingHandler struct {
	meetingService *meetings.Service
	logger         *slog.Logger
}

func NewMeetingHandler(meetingService *meetings.Service, logger *slog.Logger) *MeetingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeetingHandler{meetingService: meetingService, logger: logger}
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.meetingService.List(r.Context(), middleware.GetOrganizationID(r.Context()), dto.PaginationFromRequest(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMeetingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	meeting, err := h.meetingService.Create(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, meeting)
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	meeting, err := h.meetingService.Get(r.Context(), middleware.GetOrganizationID(r.Context()), meetingID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (h *MeetingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}
	var req dto.RescheduleMeetingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	meeting, err := h.meetingService.Reschedule(ctx, middleware.GetOrganizationID(ctx), meetingID, middleware.GetUserID(ctx), *req.StartsAt, req.EndsAt)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.meetingService.Delete(ctx, middleware.GetOrganizationID(ctx), meetingID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeetingHandler) InviteBot(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	ctx := r.Context()
	meeting, err := h.meetingService.InviteBot(ctx, middleware.GetOrganizationID(ctx), meetingID, middleware.GetUserID(ctx))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (h *MeetingHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	entries, err := h.meetingService.Timeline(r.Context(), middleware.GetOrganizationID(r.Context()), meetingID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *MeetingHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	segments, err := h.meetingService.Transcript(r.Context(), middleware.GetOrganizationID(r.Context()), meetingID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

func (h *MeetingHandler) Insights(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	insights, err := h.meetingService.Insights(r.Context(), middleware.GetOrganizationID(r.Context()), meetingID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (h *MeetingHandler) ListActionItems(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}

	items, err := h.meetingService.ListActionItems(r.Context(), middleware.GetOrganizationID(r.Context()), meetingID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Review turns a reviewed transcript point into an action item.
func (h *MeetingHandler) Review(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := urlUUID(w, r, "id", "meeting")
	if !ok {
		return
	}
	var req dto.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.meetingService.Review(r.Context(), middleware.GetOrganizationID(r.Context()), meetingID, req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *MeetingHandler) UpdateActionItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := urlUUID(w, r, "id", "action item")
	if !ok {
		return
	}
	var req dto.UpdateActionItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.meetingService.UpdateActionItem(r.Context(), middleware.GetOrganizationID(r.Context()), itemID, req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
