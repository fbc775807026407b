package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/projects"
)

// ProjectHandler serves projects and everything nested under them. Routes
// with a project id run behind RequireProjectRole, so handlers only check
// organization scope.
type ProjectHandler struct {
	projectService *projects.Service
	logger         *slog.Logger
}

func NewProjectHandler(projectService *projects.Service, logger *slog.Logger) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{projectService: projectService, logger: logger}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.projectService.List(r.Context(), middleware.GetOrganizationID(r.Context()), dto.PaginationFromRequest(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	project, err := h.projectService.Create(ctx, middleware.GetOrganizationID(ctx), middleware.GetUserID(ctx), req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), middleware.GetOrganizationID(r.Context()), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req dto.UpdateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projectService.Update(r.Context(), middleware.GetOrganizationID(r.Context()), projectID, req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.projectService.Delete(ctx, middleware.GetOrganizationID(ctx), projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	m, err := h.projectService.Metrics(r.Context(), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *ProjectHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	tasks, err := h.projectService.ListTasks(r.Context(), projectID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.projectService.CreateTask(r.Context(), projectID, middleware.GetUserID(r.Context()), req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *ProjectHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	taskID, ok := urlUUID(w, r, "taskId", "task")
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.projectService.UpdateTask(r.Context(), projectID, taskID, req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *ProjectHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	taskID, ok := urlUUID(w, r, "taskId", "task")
	if !ok {
		return
	}

	if err := h.projectService.DeleteTask(r.Context(), projectID, taskID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	expenses, err := h.projectService.ListExpenses(r.Context(), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ProjectHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req dto.CreateExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	expense, err := h.projectService.CreateExpense(r.Context(), projectID, middleware.GetUserID(r.Context()), req.Input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (h *ProjectHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	expenseID, ok := urlUUID(w, r, "expenseId", "expense")
	if !ok {
		return
	}

	if err := h.projectService.DeleteExpense(r.Context(), projectID, expenseID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Budget(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	budget, err := h.projectService.Budget(r.Context(), middleware.GetOrganizationID(r.Context()), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	members, err := h.projectService.ListMembers(r.Context(), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// SetMember adds a user to the project or changes their role.
func (h *ProjectHandler) SetMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req dto.ProjectMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.projectService.SetMemberRole(r.Context(), projectID, req.UserID, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	userID, ok := urlUUID(w, r, "userId", "user")
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(r.Context(), projectID, userID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Invite(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req dto.ProjectInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	invite, err := h.projectService.Invite(ctx, middleware.GetOrganizationID(ctx), projectID, middleware.GetUserID(ctx), req.Email, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *ProjectHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	invites, err := h.projectService.ListInvites(r.Context(), projectID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *ProjectHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req dto.AcceptProjectInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.projectService.AcceptInvite(r.Context(), middleware.GetUserID(r.Context()), req.Token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}
