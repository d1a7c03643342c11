package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darasahq/darasa/internal"
	"github.com/darasahq/darasa/internal/cron"
	"github.com/darasahq/darasa/internal/handler"
	"github.com/darasahq/darasa/internal/jobs"
	"github.com/darasahq/darasa/internal/middleware"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/repository"
	"github.com/darasahq/darasa/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize store
	store := repository.NewPostgres(db)

	// Initialize notifier: SMTP in production, console logging in development
	var notifier notify.Notifier
	if cfg.Env == "development" {
		notifier = notify.NewConsoleNotifier(logger)
	} else {
		notifier, err = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}, cfg.BaseURL, logger)
		if err != nil {
			return fmt.Errorf("notifier initialization failed: %w", err)
		}
	}

	// Initialize services
	referralService := service.NewReferralService(store, notifier, logger)
	schoolService := service.NewSchoolService(store, referralService, logger)
	entitlementService := service.NewEntitlementService(store, cfg.GracePeriod, logger)
	quotaService := service.NewQuotaService(store, logger)
	subscriptionService := service.NewSubscriptionService(store, referralService, cfg.GracePeriod, logger)

	// Initialize scheduler and jobs
	loc, err := time.LoadLocation(cfg.CronTimezone)
	if err != nil {
		return fmt.Errorf("timezone load failed: %w", err)
	}
	scheduler := cron.New(store, loc, logger)

	if err := scheduler.Register(cfg.ExpiryCheckSchedule, jobs.NewExpireSubscriptions(subscriptionService)); err != nil {
		return fmt.Errorf("job registration failed: %w", err)
	}
	if err := scheduler.Register(cfg.ReminderSchedule, jobs.NewRenewalReminders(store, notifier, cfg.GracePeriod, logger)); err != nil {
		return fmt.Errorf("job registration failed: %w", err)
	}
	if err := scheduler.Register(cfg.SMSResetSchedule, jobs.NewResetSMSQuotas(store, logger)); err != nil {
		return fmt.Errorf("job registration failed: %w", err)
	}

	if cfg.CronEnabled {
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		logger.Warn("scheduler disabled, lifecycle jobs will not run")
	}

	// Initialize middleware
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		MaxAttempts:   cfg.RateLimitMaxAttempts,
		Window:        cfg.RateLimitWindow,
		BlockDuration: cfg.RateLimitBlockDuration,
	}, logger)
	defer limiter.Close()

	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	requestLogging := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(cfg.Env != "development")

	// Initialize handlers
	schoolHandler := handler.NewSchoolHandler(schoolService, referralService, logger)
	entitlementHandler := handler.NewEntitlementHandler(entitlementService, logger)
	quotaHandler := handler.NewQuotaHandler(quotaService, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, logger)
	adminHandler := handler.NewAdminHandler(scheduler, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	schoolHandler.RegisterRoutes(mux, rateLimitMw.Limit)
	entitlementHandler.RegisterRoutes(mux)
	quotaHandler.RegisterRoutes(mux)
	subscriptionHandler.RegisterRoutes(mux)
	adminHandler.RegisterRoutes(mux, metricsAuth.Handler)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: securityHeaders.Handler(requestLogging.Handler(mux)),
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
