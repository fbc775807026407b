//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/agentops/internal/auth"
	"github.com/hugh/agentops/internal/database"
	"github.com/hugh/agentops/internal/mail"
	"github.com/hugh/agentops/internal/projects"
	"github.com/hugh/agentops/pkg/config"
	"github.com/hugh/agentops/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	mailer := mail.NewLogSender(logger)
	authService := auth.NewService(auth.ServiceConfig{
		DB:      db,
		JWT:     auth.NewJWTService(cfg.Token.AccessSecret, cfg.Token.AccessTTL()),
		Refresh: auth.NewRefreshStore(db, cfg.Token.RefreshTTL()),
		Mailer:  mailer,
		Logger:  logger,
		AppURL:  cfg.Server.AppURL,
	})

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	ctx := context.Background()
	session, err := authService.Signup(ctx, auth.SignupInput{
		Name:             name,
		Email:            email,
		Password:         password,
		OrganizationName: "Default Organization",
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}
	user := session.User

	projectService := projects.NewService(projects.Config{
		DB:      db,
		Invites: auth.NewInviteCodec(cfg.Invite.Secret, cfg.Invite.TTL()),
		Mailer:  mailer,
		AppURL:  cfg.Server.AppURL,
		Logger:  logger,
	})
	project, err := projectService.Create(ctx, user.OrganizationID, user.ID, projects.CreateInput{
		Name:        "Getting started",
		Description: "A sample project to explore tasks, budget and meetings.",
		BudgetCents: 500000,
	})
	if err != nil {
		log.Fatalf("failed to create sample project: %v", err)
	}
	for _, title := range []string{"Invite your team", "Connect Google Calendar", "Schedule the kickoff meeting"} {
		if _, err := projectService.CreateTask(ctx, project.ID, user.ID, projects.CreateTaskInput{Title: title}); err != nil {
			log.Fatalf("failed to create sample task: %v", err)
		}
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", user.Email)
	fmt.Printf("Organization: %s\n", user.Organization.Name)
	fmt.Printf("Project: %s\n", project.Name)
	fmt.Printf("Access token: %s\n", session.AccessToken)
}
