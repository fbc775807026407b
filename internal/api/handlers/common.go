package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/apperr"
)

const maxBodyBytes = 1 << 20

type validatable interface {
	Validate() map[string]string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto the wire. Anything that is not an
// *apperr.Error is logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if appErr, ok := apperr.As(err); ok {
		writeJSON(w, appErr.Status, dto.ErrorResponse{Error: appErr.Message, Details: appErr.Details})
		return
	}
	logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
}

// decodeJSON reads the body into v and runs its validation. It writes the
// 400 itself and reports false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, v validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	if errors := v.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return false
	}
	return true
}

// urlUUID parses a chi URL parameter, writing 400 on failure.
func urlUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + label + " ID"})
		return uuid.Nil, false
	}
	return id, true
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
