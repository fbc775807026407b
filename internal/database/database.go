package database

import (
	"fmt"
	"log/slog"

	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.SSLMode == "disable" && cfg.Driver == "postgres" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "driver", cfg.Driver, "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

// Models lists every table, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Organization{},
		&models.User{},
		&models.RefreshToken{},
		&models.PasswordResetToken{},
		&models.Invite{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectInvite{},
		&models.Task{},
		&models.Expense{},
		&models.Meeting{},
		&models.ActionItem{},
		&models.TranscriptSegment{},
		&models.Conversation{},
		&models.Message{},
		&models.Integration{},
		&models.IntegrationConnection{},
		&models.AuditLog{},
		&models.WebhookEvent{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	return SeedIntegrations(db)
}

// SeedIntegrations upserts the integration catalog.
func SeedIntegrations(db *gorm.DB) error {
	catalog := append([]models.Integration(nil), models.IntegrationCatalog...)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "category"}),
	}).Create(&catalog).Error
}
