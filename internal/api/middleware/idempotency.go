package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const IdempotencyHeader = "Idempotency-Key"

// Idempotency rejects a repeated Idempotency-Key on mutating requests within
// ttl. Keys are write-once; the first request wins even if it later fails.
// With no redis client the middleware is a pass-through.
func Idempotency(client *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	return func(next http.Handler) http.Handler {
		if client == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := client.SetNX(r.Context(), "idem:"+key, "1", ttl).Result()
			if err != nil {
				logger.WarnContext(r.Context(), "idempotency store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeError(w, http.StatusConflict, "Duplicate request")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
