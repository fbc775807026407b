package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/mail"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a private in-memory SQLite database with every table
// migrated and the integration catalog seeded. A single connection keeps
// concurrent callers serialized on the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// NewTestLogger discards everything below error level.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// SetupTestRedis starts a miniredis server and returns a client bound to it.
func SetupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// CreateTestOrg creates a test organization
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{Name: "Test Organization " + uuid.NewString()[:8]}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

const TestPassword = "testpassword123"

var (
	testHashOnce sync.Once
	testHash     string
	testHashErr  error
)

// testPasswordHash hashes TestPassword once per test binary.
func testPasswordHash() (string, error) {
	testHashOnce.Do(func() {
		testHash, testHashErr = auth.HashPassword(TestPassword)
	})
	return testHash, testHashErr
}

// CreateTestUser creates an ADMIN in org with TestPassword.
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, org, "ADMIN")
}

func CreateTestUserWithRole(t *testing.T, db *gorm.DB, org *models.Organization, role string) *models.User {
	t.Helper()

	hash, err := testPasswordHash()
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:          "test-" + uuid.NewString()[:8] + "@example.com",
		Name:           "Test User",
		PasswordHash:   hash,
		OrganizationID: org.ID,
		Role:           role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Organization = org
	return user
}

// CreateTestProject creates a project in org with owner as its OWNER member.
func CreateTestProject(t *testing.T, db *gorm.DB, orgID uuid.UUID, owner *models.User) *models.Project {
	t.Helper()

	project := &models.Project{
		OrganizationID: orgID,
		Name:           "Project " + uuid.NewString()[:8],
		BudgetCents:    100000,
		CreatedBy:      owner.ID,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	AddProjectMember(t, db, project.ID, owner.ID, "OWNER")
	return project
}

func AddProjectMember(t *testing.T, db *gorm.DB, projectID, userID uuid.UUID, role string) *models.ProjectMember {
	t.Helper()

	member := &models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add project member: %v", err)
	}
	return member
}

func CreateTestMeeting(t *testing.T, db *gorm.DB, orgID, createdBy uuid.UUID) *models.Meeting {
	t.Helper()

	meeting := &models.Meeting{
		OrganizationID: orgID,
		Title:          "Weekly sync",
		StartsAt:       time.Now().Add(24 * time.Hour).UTC(),
		BotStatus:      models.BotStatusNone,
		CreatedBy:      createdBy,
	}
	if err := db.Create(meeting).Error; err != nil {
		t.Fatalf("failed to create test meeting: %v", err)
	}
	return meeting
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 15*time.Minute)
}

// GenerateTestToken generates a valid access token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(auth.PrincipalFromUser(user))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// MailRecorder is an in-memory mail.Mailer.
type MailRecorder struct {
	mu       sync.Mutex
	Messages []mail.Message
	Err      error
}

func (m *MailRecorder) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *MailRecorder) Last() (mail.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		return mail.Message{}, false
	}
	return m.Messages[len(m.Messages)-1], true
}

func (m *MailRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// FindCookie returns the named cookie set on the response, if any.
func FindCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Token      string
	Mailer     *MailRecorder
	Logger     *slog.Logger
}

// NewTestContext creates a complete test setup with DB, org, ADMIN user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db, org)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Token:      token,
		Mailer:     &MailRecorder{},
		Logger:     NewTestLogger(),
	}
}

// NewAuthService builds an auth.Service over the setup's DB and mail recorder.
func (ts *TestSetup) NewAuthService() *auth.Service {
	return auth.NewService(auth.ServiceConfig{
		DB:      ts.DB,
		JWT:     ts.JWTService,
		Refresh: auth.NewRefreshStore(ts.DB, 7*24*time.Hour),
		Mailer:  ts.Mailer,
		Logger:  ts.Logger,
		AppURL:  "http://app.test",
	})
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
