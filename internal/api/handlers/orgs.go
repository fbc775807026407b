package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/orgs"
)

type OrgHandler struct {
	orgService *orgs.Service
	auditLog   *audit.Logger
	sessions   *AuthHandler
	logger     *slog.Logger
}

// NewOrgHandler needs the auth handler to hand out a session when an
// invitation is accepted.
func NewOrgHandler(orgService *orgs.Service, auditLog *audit.Logger, sessions *AuthHandler, logger *slog.Logger) *OrgHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrgHandler{orgService: orgService, auditLog: auditLog, sessions: sessions, logger: logger}
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgService.Get(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateOrgRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	org, err := h.orgService.Rename(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.orgService.ListMembers(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]dto.UserDTO, 0, len(members))
	for i := range members {
		out = append(out, dto.NewUserDTO(&members[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrgHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlUUID(w, r, "userId", "user")
	if !ok {
		return
	}
	var req dto.UpdateMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := h.orgService.UpdateMember(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), userID, req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *OrgHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req dto.InviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	invite, err := h.orgService.Invite(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), req.Email, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *OrgHandler) BulkInvite(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	result, err := h.orgService.BulkInvite(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), req.Emails, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrgHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.orgService.ListInvites(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *OrgHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, ok := urlUUID(w, r, "id", "invite")
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.orgService.RevokeInvite(ctx, middleware.GetOrganizationID(ctx), inviteID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcceptInvite is public: the signed token is the credential.
func (h *OrgHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req dto.AcceptInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.orgService.AcceptInvite(r.Context(), req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.sessions.writeSession(w, http.StatusOK, session)
}

func (h *OrgHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orgService.Dashboard(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *OrgHandler) Workspace(w http.ResponseWriter, r *http.Request) {
	projects, err := h.orgService.Workspace(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *OrgHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	page, err := h.auditLog.List(r.Context(), middleware.GetOrganizationID(r.Context()), dto.PaginationFromRequest(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
