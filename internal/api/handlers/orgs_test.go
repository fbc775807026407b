package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/api/handlers"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/orgs"
	"github.com/hugh/agentops/internal/rbac"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrgTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	authService := tc.NewAuthService()
	svc := orgs.NewService(orgs.Config{
		DB:      tc.DB,
		Auth:    authService,
		Invites: auth.NewInviteCodec("invite-secret", 7*24*time.Hour),
		Mailer:  tc.Mailer,
		AppURL:  "http://app.test",
		Logger:  tc.Logger,
	})
	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerConfig{AuthService: authService, Logger: tc.Logger})
	handler := handlers.NewOrgHandler(svc, audit.NewLogger(tc.DB), authHandler, tc.Logger)

	r := chi.NewRouter()
	r.Post("/api/v1/orgs/invites/accept", handler.AcceptInvite)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Get("/api/v1/orgs/me", handler.Get)
		r.With(middleware.RequireRole(rbac.OrgAdmin)).Patch("/api/v1/orgs/me", handler.Update)
		r.Get("/api/v1/orgs/members", handler.ListMembers)
		r.With(middleware.RequireRole(rbac.OrgAdmin)).Patch("/api/v1/orgs/members/{userId}", handler.UpdateMember)
		r.With(middleware.RequireRole(rbac.OrgAdmin, rbac.OrgPM)).Post("/api/v1/orgs/invites", handler.Invite)
		r.Get("/api/v1/dashboard", handler.Dashboard)
	})
	return r, tc
}

func inviteToken(t *testing.T, m *testutil.MailRecorder) string {
	t.Helper()
	msg, ok := m.Last()
	require.True(t, ok, "no invitation was mailed")
	_, token, found := strings.Cut(msg.Text, "token=")
	require.True(t, found)
	return token
}

func TestOrgHandler_InviteAndAccept(t *testing.T) {
	router, tc := setupOrgTestRouter(t)
	defer tc.Cleanup()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/orgs/invites",
		map[string]string{"email": "Invitee@Example.com", "role": "PM"}, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var invite models.Invite
	testutil.ParseJSONResponse(t, rr, &invite)
	assert.Equal(t, "invitee@example.com", invite.Email)
	assert.Equal(t, "PM", invite.Role)

	token := inviteToken(t, tc.Mailer)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/orgs/invites/accept",
		map[string]string{"token": token, "name": "Invitee", "password": "invitee-password"}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.AuthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "invitee@example.com", resp.User.Email)
	assert.Equal(t, "PM", resp.User.Role)
	assert.Equal(t, tc.Org.ID.String(), resp.User.OrganizationID)
	assert.NotNil(t, testutil.FindCookie(rr, "rt"))

	t.Run("token is single use", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/orgs/invites/accept",
			map[string]string{"token": token}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("existing member cannot be invited", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/orgs/invites",
			map[string]string{"email": "invitee@example.com"}, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestOrgHandler_InviteRequiresManager(t *testing.T) {
	router, tc := setupOrgTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")
	token := testutil.GenerateTestToken(t, tc.JWTService, member)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "POST", "/api/v1/orgs/invites",
		map[string]string{"email": "someone@example.com"}, token))
	testutil.AssertStatus(t, rr, http.StatusForbidden)
	assert.Equal(t, 0, tc.Mailer.Count())
}

func TestOrgHandler_AcceptGarbageToken(t *testing.T) {
	router, tc := setupOrgTestRouter(t)
	defer tc.Cleanup()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.UnauthenticatedRequest(t, "POST", "/api/v1/orgs/invites/accept",
		map[string]string{"token": "not.a.token"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Nil(t, testutil.FindCookie(rr, "rt"))
}

func TestOrgHandler_UpdateMember(t *testing.T) {
	router, tc := setupOrgTestRouter(t)
	defer tc.Cleanup()

	member := testutil.CreateTestUserWithRole(t, tc.DB, tc.Org, "MEMBER")

	t.Run("admin promotes", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/orgs/members/"+member.ID.String(),
			map[string]string{"role": "PM"}, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var got dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &got)
		assert.Equal(t, "PM", got.Role)
	})

	t.Run("member cannot rename org", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, tc.JWTService, member)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/orgs/me",
			map[string]string{"name": "Hijacked"}, token))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("unknown role", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "PATCH", "/api/v1/orgs/members/"+member.ID.String(),
			map[string]string{"role": "OWNER"}, tc.Token))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestOrgHandler_Dashboard(t *testing.T) {
	router, tc := setupOrgTestRouter(t)
	defer tc.Cleanup()

	testutil.CreateTestProject(t, tc.DB, tc.Org.ID, tc.User)
	testutil.CreateTestMeeting(t, tc.DB, tc.Org.ID, tc.User.ID)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, testutil.AuthenticatedRequest(t, "GET", "/api/v1/dashboard", nil, tc.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var stats orgs.Dashboard
	testutil.ParseJSONResponse(t, rr, &stats)
	assert.Equal(t, int64(1), stats.Projects)
	assert.Equal(t, int64(1), stats.Users)
	assert.Equal(t, int64(1), stats.Meetings)
	assert.Equal(t, int64(0), stats.ActionItems)
}
