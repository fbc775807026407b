package handlers_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agentops/internal/api/handlers"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/projects"
	"github.com/hugh/agentops/internal/rbac"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProjectTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	svc := projects.NewService(projects.Config{
		DB:      tc.DB,
		Invites: auth.NewInviteCodec("invite-secret", 7*24*time.Hour),
		Mailer:  tc.Mailer,
		AppURL:  "http://app.test",
		Logger:  tc.Logger,
	})
	handler := handlers.NewProjectHandler(svc, tc.Logger)

	checker := rbac.NewChecker(tc.DB)
	anyMember := middleware.RequireProjectRole(checker, rbac.AnyProjectRole...)
	writers := middleware.RequireProjectRole(checker, rbac.ProjectWriters...)
	owners := middleware.RequireProjectRole(checker, rbac.ProjectOwner)

	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.With(anyMember).Get("/", handler.Get)
			r.With(owners).Delete("/", handler.Delete)
			r.With(anyMember).Get("/tasks", handler.ListTasks)
			r.With(writers).Post("/tasks", handler.CreateTask)
			r.With(writers).Patch("/tasks/{taskId}", handler.UpdateTask)
			r.With(writers).Post("/expenses", handler.CreateExpense)
			r.With(anyMember).Get("/budget", handler.Budget)
			r.With(owners).Delete("/members/{userId}", handler.RemoveMember)
		})
	})

	return r, tc
}

func TestProjectHandler_Create(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")
	token := testutil.GenerateTestToken(t, tc.JWTService, member)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/projects",
		map[string]any{"name": "Launch", "budgetCents": 50000}, token))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var project models.Project
	testutil.ParseJSONResponse(t, rr, &project)
	assert.Equal(t, "Launch", project.Name)
	assert.Equal(t, tc.Org.ID, project.OrganizationID)

	// the creator owns what they create
	var pm models.ProjectMember
	require.NoError(t, tc.DB.Where("project_id = ? AND user_id = ?", project.ID, member.ID).First(&pm).Error)
	assert.Equal(t, "OWNER", pm.Role)

	t.Run("validation", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/projects",
			map[string]any{"name": "", "budgetCents": -1}, token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestProjectHandler_TaskPermissions(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)

	editor := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")
	testutil.AddProjectMember(t, tc.DB, project.ID, editor.ID, "EDITOR")
	viewer := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")
	testutil.AddProjectMember(t, tc.DB, project.ID, viewer.ID, "VIEWER")
	outsider := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "ADMIN")

	path := fmt.Sprintf("/api/v1/projects/%s/tasks", project.ID)
	body := map[string]string{"title": "Write release notes"}

	tests := []struct {
		name   string
		user   *models.User
		status int
	}{
		{"owner creates", tc.User, http.StatusCreated},
		{"editor creates", editor, http.StatusCreated},
		{"viewer is forbidden", viewer, http.StatusForbidden},
		{"org admin without membership is forbidden", outsider, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := testutil.GenerateTestToken(t, tc.JWTService, tt.user)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", path, body, token))
			testutil.AssertStatus(t, rr, tt.status)
		})
	}

	t.Run("viewer can list", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, tc.JWTService, viewer)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", path, nil, token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var tasks []models.Task
		testutil.ParseJSONResponse(t, rr, &tasks)
		assert.Len(t, tasks, 2)
		for _, task := range tasks {
			assert.Equal(t, models.TaskStatusTodo, task.Status)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", path+"?status=done", nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var tasks []models.Task
		testutil.ParseJSONResponse(t, rr, &tasks)
		assert.Empty(t, tasks)
	})

	t.Run("invalid project id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects/not-a-uuid/tasks", nil, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestProjectHandler_UpdateTask(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	task := models.Task{ProjectID: project.ID, Title: "Draft", Status: models.TaskStatusTodo, CreatedBy: tc.User.ID}
	require.NoError(t, tc.DB.Create(&task).Error)

	path := fmt.Sprintf("/api/v1/projects/%s/tasks/%s", project.ID, task.ID)

	t.Run("move to done", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "PATCH", path, map[string]string{"status": "done"}, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var got models.Task
		testutil.ParseJSONResponse(t, rr, &got)
		assert.Equal(t, models.TaskStatusDone, got.Status)
		assert.Equal(t, "Draft", got.Title)
	})

	t.Run("unknown status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "PATCH", path, map[string]string{"status": "blocked"}, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestProjectHandler_Budget(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	expensesPath := fmt.Sprintf("/api/v1/projects/%s/expenses", project.ID)

	for _, e := range []map[string]any{
		{"description": "Laptops", "amountCents": 60000, "category": "hardware"},
		{"description": "Hosting", "amountCents": 55000, "category": "cloud"},
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", expensesPath, e, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/projects/%s/budget", project.ID), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var budget projects.Budget
	testutil.ParseJSONResponse(t, rr, &budget)
	assert.Equal(t, int64(100000), budget.BudgetCents)
	assert.Equal(t, int64(115000), budget.SpentCents)
	assert.Equal(t, int64(-15000), budget.RemainingCents)
	assert.Equal(t, int64(60000), budget.ByCategory["hardware"])

	t.Run("non-positive amount", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", expensesPath,
			map[string]any{"description": "Refund", "amountCents": 0}, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestProjectHandler_LastOwner(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "DELETE",
		fmt.Sprintf("/api/v1/projects/%s/members/%s", project.ID, tc.User.ID), nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusConflict)
}

func TestProjectHandler_ListIsOrgScoped(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	otherOrg := testutil.CreateTestOrg(t, tc.DB)
	otherUser := testutil.CreateTestUser(t, tc.DB, otherOrg)
	testutil.CreateTestProject(t, tc.DB, otherOrg.ID, otherUser)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/projects?page=1&pageSize=10", nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var page database.Page[models.Project]
	testutil.ParseJSONResponse(t, rr, &page)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, tc.Org.ID, page.Data[0].OrganizationID)
}

func TestProjectHandler_DeletedProjectIsClosed(t *testing.T) {
	router, tc := setupProjectTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	base := "/api/v1/projects/" + project.ID.String()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "DELETE", base, nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"get", "GET", base, nil},
		{"create task", "POST", base + "/tasks", map[string]string{"title": "ghost"}},
		{"list tasks", "GET", base + "/tasks", nil},
		{"add expense", "POST", base + "/expenses", map[string]any{"description": "late", "amountCents": 100}},
		{"budget", "GET", base + "/budget", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, tt.method, tt.path, tt.body, tc.Token))
			testutil.AssertStatus(t, rr, http.StatusNotFound)
		})
	}

	var count int64
	require.NoError(t, tc.DB.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
