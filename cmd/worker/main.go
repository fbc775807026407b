package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/meetings"
	"github.com/hugh/agentops/internal/tasks"
	"github.com/hugh/agentops/internal/webhooks"
	"github.com/hugh/agentops/pkg/config"
	"github.com/hugh/agentops/pkg/queue"
	"github.com/hugh/agentops/pkg/util"
	"github.com/joho/godotenv"
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

	logger.Info("starting agentops worker", "concurrency", cfg.Worker.Concurrency)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// The worker is where queued mail is actually delivered.
	mailer, err := mail.New(cfg.SMTP, logger)
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		os.Exit(1)
	}

	// nil queue: the worker applies events itself
	webhookService := webhooks.NewService(db, cfg.Webhook.Secret, nil, meetings.NewService(db, logger), logger)

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency, logger)

	handler := tasks.NewHandler(mailer, webhookService, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		cancel()
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
