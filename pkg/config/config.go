package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Token       TokenConfig
	Invite      InviteConfig
	OAuth       OAuthConfig
	SMTP        SMTPConfig
	Encryption  EncryptionConfig
	RateLimit   RateLimitConfig
	Idempotency IdempotencyConfig
	Webhook     WebhookConfig
	Worker      WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	LogLevel       string
	AppURL         string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type TokenConfig struct {
	AccessSecret      string
	AccessTTLMinutes  int
	RefreshTTLDays    int
	RefreshCookieName string
	CookieDomain      string
	ResetTTLMinutes   int
}

type InviteConfig struct {
	Secret   string
	TTLHours int
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

type OAuthConfig struct {
	Google         OAuthProviderConfig
	Facebook       OAuthProviderConfig
	GoogleCalendar OAuthProviderConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

type IdempotencyConfig struct {
	TTLSeconds int
}

type WebhookConfig struct {
	Secret string
}

type WorkerConfig struct {
	Concurrency int
}

// DSN builds the driver-specific connection string.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "mysql" {
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (t *TokenConfig) AccessTTL() time.Duration {
	return time.Duration(t.AccessTTLMinutes) * time.Minute
}

func (t *TokenConfig) RefreshTTL() time.Duration {
	return time.Duration(t.RefreshTTLDays) * 24 * time.Hour
}

func (t *TokenConfig) ResetTTL() time.Duration {
	return time.Duration(t.ResetTTLMinutes) * time.Minute
}

func (i *InviteConfig) TTL() time.Duration {
	return time.Duration(i.TTLHours) * time.Hour
}

func (i *IdempotencyConfig) TTL() time.Duration {
	return time.Duration(i.TTLSeconds) * time.Second
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "agentops")
	v.SetDefault("DATABASE_PASSWORD", "agentops_secret")
	v.SetDefault("DATABASE_NAME", "agentops")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_ACCESS_SECRET", "change-me-in-production")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_TTL_DAYS", 7)
	v.SetDefault("REFRESH_COOKIE_NAME", "rt")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("PASSWORD_RESET_TTL_MINUTES", 60)
	v.SetDefault("INVITE_SECRET", "change-me-invite-secret")
	v.SetDefault("INVITE_TTL_HOURS", 168)
	v.SetDefault("WEBHOOK_HMAC_SECRET", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "no-reply@agentops.local")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("IDEMPOTENCY_TTL_SECONDS", 600)
	v.SetDefault("WORKER_CONCURRENCY", 10)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AppURL:         strings.TrimRight(v.GetString("APP_URL"), "/"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:      v.GetString("DATABASE_DRIVER"),
			Host:        v.GetString("DATABASE_HOST"),
			Port:        v.GetInt("DATABASE_PORT"),
			User:        v.GetString("DATABASE_USER"),
			Password:    v.GetString("DATABASE_PASSWORD"),
			Name:        v.GetString("DATABASE_NAME"),
			SSLMode:     v.GetString("DATABASE_SSLMODE"),
			AutoMigrate: v.GetBool("DATABASE_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Token: TokenConfig{
			AccessSecret:      v.GetString("JWT_ACCESS_SECRET"),
			AccessTTLMinutes:  v.GetInt("ACCESS_TOKEN_TTL_MINUTES"),
			RefreshTTLDays:    v.GetInt("REFRESH_TOKEN_TTL_DAYS"),
			RefreshCookieName: v.GetString("REFRESH_COOKIE_NAME"),
			CookieDomain:      v.GetString("COOKIE_DOMAIN"),
			ResetTTLMinutes:   v.GetInt("PASSWORD_RESET_TTL_MINUTES"),
		},
		Invite: InviteConfig{
			Secret:   v.GetString("INVITE_SECRET"),
			TTLHours: v.GetInt("INVITE_TTL_HOURS"),
		},
		OAuth: OAuthConfig{
			Google: OAuthProviderConfig{
				ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
				ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
				CallbackURL:  v.GetString("GOOGLE_CALLBACK_URL"),
			},
			Facebook: OAuthProviderConfig{
				ClientID:     v.GetString("FACEBOOK_CLIENT_ID"),
				ClientSecret: v.GetString("FACEBOOK_CLIENT_SECRET"),
				CallbackURL:  v.GetString("FACEBOOK_CALLBACK_URL"),
			},
			GoogleCalendar: OAuthProviderConfig{
				ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
				ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
				CallbackURL:  v.GetString("GOOGLE_CALENDAR_CALLBACK_URL"),
			},
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Idempotency: IdempotencyConfig{
			TTLSeconds: v.GetInt("IDEMPOTENCY_TTL_SECONDS"),
		},
		Webhook: WebhookConfig{
			Secret: v.GetString("WEBHOOK_HMAC_SECRET"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
		},
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "mysql" {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Database.Driver)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
