package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/api/validation"
	"github.com/hugh/agentops/internal/integrations"
)

type IntegrationHandler struct {
	integrationService *integrations.Service
	calendar           *integrations.GoogleCalendar
	appURL             string
	logger             *slog.Logger
}

func NewIntegrationHandler(integrationService *integrations.Service, calendar *integrations.GoogleCalendar, appURL string, logger *slog.Logger) *IntegrationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrationHandler{
		integrationService: integrationService,
		calendar:           calendar,
		appURL:             appURL,
		logger:             logger,
	}
}

func (h *IntegrationHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.integrationService.Catalog(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *IntegrationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	integrationID, ok := h.integrationID(w, r)
	if !ok {
		return
	}
	var req dto.ConnectIntegrationRequest
	// the body is optional
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	conn, err := h.integrationService.Connect(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), integrationID, req.Config)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *IntegrationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	integrationID, ok := h.integrationID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.integrationService.Disconnect(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), integrationID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

func (h *IntegrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	integrationID, ok := h.integrationID(w, r)
	if !ok {
		return
	}

	status, err := h.integrationService.Status(r.Context(), middleware.GetOrganizationID(r.Context()), integrationID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *IntegrationHandler) integrationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "integrationId")
	if !validation.IsValidSlug(id) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid integration ID"})
		return "", false
	}
	return id, true
}

// CalendarAuth returns the Google consent URL for the caller's organization.
func (h *IntegrationHandler) CalendarAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.calendar.AuthURL(middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuthURLResponse{URL: u})
}

// CalendarCallback is hit by the browser coming back from Google, so it
// answers with a redirect into the app instead of JSON.
func (h *IntegrationHandler) CalendarCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := h.appURL + "/integrations?integration=" + integrations.GoogleCalendarID

	if e := q.Get("error"); e != "" {
		http.Redirect(w, r, target+"&error="+url.QueryEscape(e), http.StatusFound)
		return
	}
	if _, err := h.calendar.Callback(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		h.logger.WarnContext(r.Context(), "google calendar callback failed", "error", err)
		http.Redirect(w, r, target+"&error=connect_failed", http.StatusFound)
		return
	}
	http.Redirect(w, r, target+"&status=connected", http.StatusFound)
}

func (h *IntegrationHandler) Calendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.calendar.Calendars(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, calendars)
}

func (h *IntegrationHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := optionalTime(q.Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid from; use RFC3339"})
		return
	}
	to, err := optionalTime(q.Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid to; use RFC3339"})
		return
	}

	events, err := h.calendar.Events(r.Context(), middleware.GetOrganizationID(r.Context()), q.Get("calendarId"), from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *IntegrationHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCalendarEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.calendar.CreateEvent(r.Context(), middleware.GetOrganizationID(r.Context()), req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *IntegrationHandler) Account(w http.ResponseWriter, r *http.Request) {
	account, err := h.calendar.Account(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *IntegrationHandler) CalendarDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.calendar.Disconnect(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w)
}

func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
