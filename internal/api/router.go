package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/internal/api/handlers"
	"github.com/hugh/agentops/internal/api/middleware"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/chat"
	"github.com/hugh/agentops/internal/integrations"
	"github.com/hugh/agentops/internal/meetings"
	"github.com/hugh/agentops/internal/orgs"
	"github.com/hugh/agentops/internal/projects"
	"github.com/hugh/agentops/internal/rbac"
	"github.com/hugh/agentops/internal/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB         *gorm.DB
	Redis      *redis.Client // optional; rate limit falls back to memory, idempotency is skipped
	Inspector  *asynq.Inspector
	Logger     *slog.Logger
	Registry   *prometheus.Registry
	JWTService *auth.JWTService

	AuthService        *auth.Service
	OAuthProviders     map[auth.Provider]auth.OAuthProvider
	OrgService         *orgs.Service
	ProjectService     *projects.Service
	MeetingService     *meetings.Service
	ChatService        *chat.Service
	IntegrationService *integrations.Service
	Calendar           *integrations.GoogleCalendar
	WebhookService     *webhooks.Service

	AppURL         string
	Cookie         handlers.CookieConfig
	AllowedOrigins []string      // CORS allowed origins
	RateLimitReqs  int           // Rate limit requests per window
	RateLimitSecs  int           // Rate limit window in seconds
	IdempotencyTTL time.Duration
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.NewMetrics(cfg.Registry).Middleware)

	var limiter middleware.Limiter
	if cfg.Redis != nil {
		limiter = middleware.NewRedisLimiter(cfg.Redis, cfg.RateLimitReqs, cfg.RateLimitSecs)
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
	}
	r.Use(middleware.RateLimit(limiter, cfg.Logger))

	// CORS - restrict to configured origins, or allow the local frontend in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyHeader, "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Idempotency(cfg.Redis, cfg.IdempotencyTTL, cfg.Logger))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis, cfg.Inspector)
	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerConfig{
		AuthService: cfg.AuthService,
		Providers:   cfg.OAuthProviders,
		Cookie:      cfg.Cookie,
		AppURL:      cfg.AppURL,
		Logger:      cfg.Logger,
	})
	orgHandler := handlers.NewOrgHandler(cfg.OrgService, audit.NewLogger(cfg.DB), authHandler, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(cfg.ProjectService, cfg.Logger)
	meetingHandler := handlers.NewMeetingHandler(cfg.MeetingService, cfg.Logger)
	chatHandler := handlers.NewChatHandler(cfg.ChatService, cfg.Logger)
	integrationHandler := handlers.NewIntegrationHandler(cfg.IntegrationService, cfg.Calendar, cfg.AppURL, cfg.Logger)
	webhookHandler := handlers.NewWebhookHandler(cfg.WebhookService, cfg.Logger)

	checker := rbac.NewChecker(cfg.DB)
	anyMember := middleware.RequireProjectRole(checker, rbac.AnyProjectRole...)
	writers := middleware.RequireProjectRole(checker, rbac.ProjectWriters...)
	owners := middleware.RequireProjectRole(checker, rbac.ProjectOwner)
	orgManagers := middleware.RequireRole(rbac.OrgAdmin, rbac.OrgPM)
	orgAdmins := middleware.RequireRole(rbac.OrgAdmin)
	managers := middleware.RequireGlobalRole(rbac.GlobalAdmin, rbac.GlobalProjectManager)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", middleware.MetricsHandler(cfg.Registry))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
		r.Get("/auth/{provider}", authHandler.OAuthStart)
		r.Get("/auth/{provider}/callback", authHandler.OAuthCallback)
		r.Post("/orgs/invites/accept", orgHandler.AcceptInvite)
		r.Get("/integrations/google-calendar/callback", integrationHandler.CalendarCallback)
		r.Post("/webhooks/meetings", webhookHandler.Receive)
		r.Post("/webhooks/{event}", webhookHandler.Receive)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Get("/dashboard", orgHandler.Dashboard)
			r.Get("/workspace", orgHandler.Workspace)
			r.With(orgAdmins).Get("/audit", orgHandler.AuditLog)

			// Organization endpoints
			r.Route("/orgs", func(r chi.Router) {
				r.Get("/me", orgHandler.Get)
				r.With(orgAdmins).Patch("/me", orgHandler.Update)
				r.Get("/members", orgHandler.ListMembers)
				r.With(orgAdmins).Patch("/members/{userId}", orgHandler.UpdateMember)

				r.Group(func(r chi.Router) {
					r.Use(orgManagers)
					r.Get("/invites", orgHandler.ListInvites)
					r.Post("/invites", orgHandler.Invite)
					r.Post("/invites/bulk", orgHandler.BulkInvite)
					r.Delete("/invites/{id}", orgHandler.RevokeInvite)
				})
			})

			// Project endpoints
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Post("/invites/accept", projectHandler.AcceptInvite)

				r.Route("/{id}", func(r chi.Router) {
					r.With(anyMember).Get("/", projectHandler.Get)
					r.With(writers).Patch("/", projectHandler.Update)
					r.With(owners).Delete("/", projectHandler.Delete)
					r.With(anyMember).Get("/metrics", projectHandler.Metrics)

					r.With(anyMember).Get("/tasks", projectHandler.ListTasks)
					r.With(writers).Post("/tasks", projectHandler.CreateTask)
					r.With(writers).Patch("/tasks/{taskId}", projectHandler.UpdateTask)
					r.With(writers).Delete("/tasks/{taskId}", projectHandler.DeleteTask)

					r.With(anyMember).Get("/expenses", projectHandler.ListExpenses)
					r.With(writers).Post("/expenses", projectHandler.CreateExpense)
					r.With(owners).Delete("/expenses/{expenseId}", projectHandler.DeleteExpense)
					r.With(anyMember).Get("/budget", projectHandler.Budget)

					r.With(anyMember).Get("/members", projectHandler.ListMembers)
					r.With(owners).Put("/members", projectHandler.SetMember)
					r.With(owners).Delete("/members/{userId}", projectHandler.RemoveMember)
					r.With(owners).Get("/invites", projectHandler.ListInvites)
					r.With(owners).Post("/invites", projectHandler.Invite)
				})
			})

			// Meeting endpoints
			r.Route("/meetings", func(r chi.Router) {
				r.Get("/", meetingHandler.List)
				r.Post("/", meetingHandler.Create)
				r.Get("/{id}", meetingHandler.Get)
				r.With(orgManagers).Patch("/{id}/reschedule", meetingHandler.Reschedule)
				r.With(orgManagers).Delete("/{id}", meetingHandler.Delete)
				r.Post("/{id}/invite-bot", meetingHandler.InviteBot)
				r.Get("/{id}/timeline", meetingHandler.Timeline)
				r.Get("/{id}/transcript", meetingHandler.Transcript)
				r.Get("/{id}/insights", meetingHandler.Insights)
				r.Get("/{id}/action-items", meetingHandler.ListActionItems)
				r.Post("/{id}/review", meetingHandler.Review)
			})
			r.Patch("/action-items/{id}", meetingHandler.UpdateActionItem)

			// Chat endpoints
			r.Route("/chat/conversations", func(r chi.Router) {
				r.Get("/", chatHandler.ListConversations)
				r.Post("/", chatHandler.CreateConversation)
				r.Get("/{id}/messages", chatHandler.ListMessages)
				r.Post("/{id}/messages", chatHandler.SendMessage)
				r.Post("/{id}/ask", chatHandler.Ask)
			})

			// Integration endpoints
			r.Route("/integrations", func(r chi.Router) {
				r.Get("/", integrationHandler.Catalog)

				r.Route("/google-calendar", func(r chi.Router) {
					r.With(managers).Get("/auth", integrationHandler.CalendarAuth)
					r.Get("/calendars", integrationHandler.Calendars)
					r.Get("/events", integrationHandler.Events)
					r.With(managers).Post("/events", integrationHandler.CreateEvent)
					r.Get("/account", integrationHandler.Account)
					r.With(managers).Delete("/", integrationHandler.CalendarDisconnect)
				})

				r.With(managers).Post("/{integrationId}/connect", integrationHandler.Connect)
				r.With(managers).Delete("/{integrationId}", integrationHandler.Disconnect)
				r.Get("/{integrationId}/status", integrationHandler.Status)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})

	return &Router{r}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
