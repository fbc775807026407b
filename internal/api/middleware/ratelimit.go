package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether key may make another request in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
	Limit() int
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	now      func() time.Time
}

func NewRedisLimiter(client *redis.Client, requests, windowSeconds int) *RedisLimiter {
	requests, window := limiterDefaults(requests, windowSeconds)
	return &RedisLimiter{client: client, requests: requests, window: window, now: time.Now}
}

func (l *RedisLimiter) Limit() int {
	return l.requests
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	reset := windowStart.Add(l.window)
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, reset, err
	}

	count := int(incr.Val())
	remaining := l.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.requests, remaining, reset, nil
}

// MemoryLimiter is the per-process sliding window used when redis is absent.
type MemoryLimiter struct {
	requests int
	window   time.Duration
	clients  map[string]*clientWindow
	mu       sync.Mutex
	now      func() time.Time
}

type clientWindow struct {
	timestamps []time.Time
}

func NewMemoryLimiter(requests, windowSeconds int) *MemoryLimiter {
	requests, window := limiterDefaults(requests, windowSeconds)
	return &MemoryLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string]*clientWindow),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Limit() int {
	return l.requests
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	client, ok := l.clients[key]
	if !ok {
		client = &clientWindow{timestamps: make([]time.Time, 0, l.requests)}
		l.clients[key] = client
	}

	// Drop timestamps outside the window
	windowStart := now.Add(-l.window)
	kept := client.timestamps[:0]
	for _, ts := range client.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	client.timestamps = kept

	if len(client.timestamps) >= l.requests {
		return false, 0, client.timestamps[0].Add(l.window), nil
	}

	client.timestamps = append(client.timestamps, now)
	l.sweep(now)
	return true, l.requests - len(client.timestamps), now.Add(l.window), nil
}

// sweep forgets idle clients. Called with mu held.
func (l *MemoryLimiter) sweep(now time.Time) {
	if len(l.clients) < 1024 {
		return
	}
	for key, c := range l.clients {
		if len(c.timestamps) == 0 || now.Sub(c.timestamps[len(c.timestamps)-1]) > l.window {
			delete(l.clients, key)
		}
	}
}

func limiterDefaults(requests, windowSeconds int) (int, time.Duration) {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return requests, time.Duration(windowSeconds) * time.Second
}

// RateLimit applies limiter per client ip. A limiter error lets the request
// through; the limiter protects capacity and is not an auth control.
func RateLimit(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
