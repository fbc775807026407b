package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/internal/api"
	"github.com/hugh/agentops/internal/api/handlers"
	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/chat"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/integrations"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/meetings"
	"github.com/hugh/agentops/internal/orgs"
	"github.com/hugh/agentops/internal/projects"
	"github.com/hugh/agentops/internal/webhooks"
	"github.com/hugh/agentops/pkg/config"
	"github.com/hugh/agentops/pkg/crypto"
	"github.com/hugh/agentops/pkg/queue"
	"github.com/hugh/agentops/pkg/util"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting agentops server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, running without queue", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	// Background jobs need Redis; without it mail is sent inline and
	// webhooks are applied as they arrive.
	var (
		asynqClient *asynq.Client
		inspector   *asynq.Inspector
		mailer      mail.Mailer
		webhookQ    webhooks.Enqueuer
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		inspector = queue.NewInspector(&cfg.Redis)
		mailer = mail.NewQueueSender(asynqClient)
		webhookQ = asynqClient
	} else {
		mailer, err = mail.New(cfg.SMTP, logger)
		if err != nil {
			logger.Error("failed to create mailer", "error", err)
			os.Exit(1)
		}
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - calendar tokens will be lost on restart")
	}
	if cfg.Webhook.Secret == "" {
		logger.Warn("WEBHOOK_HMAC_SECRET not set, every webhook will be rejected")
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.Token.AccessSecret, cfg.Token.AccessTTL())
	authService := auth.NewService(auth.ServiceConfig{
		DB:       db,
		JWT:      jwtService,
		Refresh:  auth.NewRefreshStore(db, cfg.Token.RefreshTTL()),
		Mailer:   mailer,
		Logger:   logger,
		AppURL:   cfg.Server.AppURL,
		ResetTTL: cfg.Token.ResetTTL(),
	})
	invites := auth.NewInviteCodec(cfg.Invite.Secret, cfg.Invite.TTL())

	orgService := orgs.NewService(orgs.Config{
		DB:      db,
		Auth:    authService,
		Invites: invites,
		Mailer:  mailer,
		AppURL:  cfg.Server.AppURL,
		Logger:  logger,
	})
	projectService := projects.NewService(projects.Config{
		DB:      db,
		Invites: invites,
		Mailer:  mailer,
		AppURL:  cfg.Server.AppURL,
		Logger:  logger,
	})
	meetingService := meetings.NewService(db, logger)
	chatService := chat.NewService(chat.Config{DB: db, Logger: logger})
	integrationService := integrations.NewService(db, logger)
	calendar := integrations.NewGoogleCalendar(integrationService, integrations.GoogleCalendarConfig{
		OAuth:       cfg.OAuth.GoogleCalendar,
		StateSecret: cfg.Token.AccessSecret,
	}, encryptor)
	webhookService := webhooks.NewService(db, cfg.Webhook.Secret, webhookQ, meetingService, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:                 db,
		Redis:              redisClient,
		Inspector:          inspector,
		Logger:             logger,
		Registry:           registry,
		JWTService:         jwtService,
		AuthService:        authService,
		OAuthProviders:     auth.NewOAuthProviders(cfg.OAuth),
		OrgService:         orgService,
		ProjectService:     projectService,
		MeetingService:     meetingService,
		ChatService:        chatService,
		IntegrationService: integrationService,
		Calendar:           calendar,
		WebhookService:     webhookService,
		AppURL:             cfg.Server.AppURL,
		Cookie: handlers.CookieConfig{
			Name:   cfg.Token.RefreshCookieName,
			Domain: cfg.Token.CookieDomain,
			Secure: !cfg.Server.IsDevelopment(),
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		IdempotencyTTL: cfg.Idempotency.TTL(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(router, "agentops"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if inspector != nil {
		inspector.Close()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
