package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/api/dto"
	"github.com/hugh/agentops/internal/chat"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/database/models"
)

func benchTasks(n int) []models.Task {
	tasks := make([]models.Task, n)
	projectID := uuid.New()
	for i := range tasks {
		tasks[i] = models.Task{
			ProjectID:   projectID,
			Title:       "Prepare quarterly review",
			Description: "Collect budget numbers and meeting notes for the review.",
			Status:      models.TaskStatusInProgress,
			CreatedBy:   uuid.New(),
		}
		tasks[i].ID = uuid.New()
		tasks[i].CreatedAt = time.Now()
		tasks[i].UpdatedAt = time.Now()
	}
	return tasks
}

// BenchmarkJSONSerialization benchmarks JSON encoding of common response types
func BenchmarkJSONSerialization(b *testing.B) {
	b.Run("ErrorResponse", func(b *testing.B) {
		resp := dto.ErrorResponse{
			Error: "Validation failed",
			Details: map[string]string{
				"email":    "Invalid email format",
				"password": "Password must be at least 8 characters",
			},
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("AuthResponse", func(b *testing.B) {
		resp := dto.AuthResponse{
			User: dto.UserDTO{
				ID:             uuid.New().String(),
				Email:          "user@example.com",
				Name:           "Test User",
				Role:           "ADMIN",
				OrganizationID: uuid.New().String(),
			},
			AccessToken: strings.Repeat("x", 300),
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("TaskPage", func(b *testing.B) {
		resp := database.Page[models.Task]{
			Data:       benchTasks(50),
			Total:      500,
			Page:       1,
			PageSize:   50,
			TotalPages: 10,
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})
}

// BenchmarkRequestParsing benchmarks JSON decoding of request bodies
func BenchmarkRequestParsing(b *testing.B) {
	b.Run("LoginRequest", func(b *testing.B) {
		jsonData := []byte(`{"email":"user@example.com","password":"securepassword123"}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.LoginRequest
			_ = json.Unmarshal(jsonData, &req)
		}
	})

	b.Run("CreateTaskRequest", func(b *testing.B) {
		jsonData := []byte(`{"title":"Ship v2","description":"Cut the release","assigneeId":"` + uuid.NewString() + `","dueDate":"2024-06-01T09:00:00Z"}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.CreateTaskRequest
			_ = json.Unmarshal(jsonData, &req)
		}
	})

	b.Run("SignupRequestWithDecoder", func(b *testing.B) {
		jsonData := `{"name":"New User","email":"new@example.com","password":"securepassword123","organizationName":"Acme"}`
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.SignupRequest
			_ = json.NewDecoder(strings.NewReader(jsonData)).Decode(&req)
		}
	})
}

// BenchmarkRequestValidation benchmarks request validation
func BenchmarkRequestValidation(b *testing.B) {
	b.Run("SignupRequestValid", func(b *testing.B) {
		req := dto.SignupRequest{
			Name:             "New User",
			Email:            "new@example.com",
			Password:         "securepassword123",
			OrganizationName: "Acme",
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("SignupRequestInvalid", func(b *testing.B) {
		req := dto.SignupRequest{Email: "not-an-email", Password: "short"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("CreateMeetingRequest", func(b *testing.B) {
		start := time.Now().Add(time.Hour)
		end := start.Add(30 * time.Minute)
		req := dto.CreateMeetingRequest{
			Title:      "Weekly sync",
			StartsAt:   &start,
			EndsAt:     &end,
			MeetingURL: "https://meet.google.com/abc-defg-hij",
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})
}

// BenchmarkWriteJSON benchmarks the response writer helper
func BenchmarkWriteJSON(b *testing.B) {
	b.Run("SmallResponse", func(b *testing.B) {
		resp := dto.SuccessResponse{Success: true}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, resp)
		}
	})

	b.Run("LargeResponse", func(b *testing.B) {
		resp := database.Page[models.Task]{Data: benchTasks(100), Total: 100, Page: 1, PageSize: 100, TotalPages: 1}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, resp)
		}
	})
}

// BenchmarkWriteEvent benchmarks one server-sent chat chunk
func BenchmarkWriteEvent(b *testing.B) {
	ev := chat.Event{Chunk: "message-3"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		_ = writeEvent(w, http.NewResponseController(w), ev)
	}
}

// BenchmarkPagination benchmarks query parameter parsing
func BenchmarkPagination(b *testing.B) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects?page=3&pageSize=250", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = dto.PaginationFromRequest(req)
	}
}

// BenchmarkParallelRequestParsing benchmarks request parsing with parallelism
func BenchmarkParallelRequestParsing(b *testing.B) {
	jsonData := []byte(`{"name":"Test User","email":"user@example.com","password":"securepassword123","organizationName":"Test Org"}`)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var req dto.SignupRequest
			_ = json.Unmarshal(jsonData, &req)
			_ = req.Validate()
		}
	})
}
