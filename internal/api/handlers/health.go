package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	inspector *asynq.Inspector
}

// NewHealthHandler checks the database always; redis and the job queue only
// when configured.
func NewHealthHandler(db *gorm.DB, redis *redis.Client, inspector *asynq.Inspector) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, inspector: inspector}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	// Check database
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		services["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			services["redis"] = "unhealthy"
			status = "unhealthy"
		} else {
			services["redis"] = "healthy"
		}
	}

	// The queue shares redis; a failure here only degrades background work.
	if h.inspector != nil {
		if _, err := h.inspector.Queues(); err != nil {
			services["queue"] = "unhealthy"
		} else {
			services["queue"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
