package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Application base URL (for email links)
	BaseURL string

	// GracePeriod is how long past expires_at a subscription still behaves
	// as active before the expiry sweep downgrades it.
	GracePeriod time.Duration

	// Rate limiting (authentication throttle)
	RateLimitMaxAttempts   int
	RateLimitWindow        time.Duration
	RateLimitBlockDuration time.Duration

	// Scheduler Configuration
	CronEnabled         bool
	CronTimezone        string // IANA name, e.g. "Africa/Dar_es_Salaam"
	ExpiryCheckSchedule string // daily expiry sweep
	ReminderSchedule    string // daily renewal reminders
	SMSResetSchedule    string // monthly SMS quota reset

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@darasa.app"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Darasa"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Lifecycle defaults
		GracePeriod: getEnvDuration("GRACE_PERIOD", 72*time.Hour),

		// Authentication throttle defaults
		RateLimitMaxAttempts:   getEnvInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
		RateLimitWindow:        getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitBlockDuration: getEnvDuration("RATE_LIMIT_BLOCK_DURATION", 30*time.Minute),

		// Scheduler defaults: expiry sweep 08:00, reminders 09:00, SMS
		// reset on the first of the month at midnight
		CronEnabled:         getEnvBool("CRON_ENABLED", true),
		CronTimezone:        getEnv("CRON_TIMEZONE", "Africa/Dar_es_Salaam"),
		ExpiryCheckSchedule: getEnv("EXPIRY_CHECK_SCHEDULE", "0 8 * * *"),
		ReminderSchedule:    getEnv("REMINDER_SCHEDULE", "0 9 * * *"),
		SMSResetSchedule:    getEnv("SMS_RESET_SCHEDULE", "0 0 1 * *"),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate the timezone early; a bad name would otherwise surface at
	// scheduler start.
	if _, err := time.LoadLocation(cfg.CronTimezone); err != nil {
		return nil, fmt.Errorf("CRON_TIMEZONE %q is invalid: %w", cfg.CronTimezone, err)
	}

	if cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("GRACE_PERIOD must not be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
