package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/event-participation/config"
	"github.com/Dosada05/event-participation/db"
	"github.com/Dosada05/event-participation/handlers"
	"github.com/Dosada05/event-participation/notify"
	"github.com/Dosada05/event-participation/realtime"
	"github.com/Dosada05/event-participation/repositories"
	api "github.com/Dosada05/event-participation/routes"
	"github.com/Dosada05/event-participation/services"
	"github.com/Dosada05/event-participation/storage"
	"github.com/Dosada05/event-participation/telemetry"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 15 * time.Second
	webhookTimeout  = 10 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbConn); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		logger.Info("database schema applied")
	}

	uploader := storage.Disabled
	if cfg.Storage.Enabled() {
		uploader, err = storage.NewS3Uploader(ctx, storage.S3UploaderConfig{
			AccountID:       cfg.Storage.AccountID,
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			BucketName:      cfg.Storage.Bucket,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize object storage: %w", err)
		}
		logger.Info("object storage initialized", slog.String("bucket", cfg.Storage.Bucket))
	} else {
		logger.Warn("object storage not configured, attachment uploads are disabled")
	}

	hub := realtime.NewHub(logger)

	sinks := []notify.Sink{notify.NewHubSink(hub)}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, &http.Client{Timeout: webhookTimeout}))
	}
	if cfg.SMTP.Host != "" {
		sinks = append(sinks, notify.NewEmailSink(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
	}
	dispatcher := notify.NewDispatcher(logger, cfg.Notify.Buffer, cfg.Notify.Workers, sinks...)

	tx := repositories.NewTransactor(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	attendeeRepo := repositories.NewPostgresAttendeeRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)
	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	logger.Info("repositories initialized")

	tokens := services.NewTokenIssuer([]byte(cfg.JWTSecretKey), cfg.TokenTTL)
	eventService := services.NewEventService(eventRepo)
	authService := services.NewAuthService(attendeeRepo, membershipRepo, teamRepo, tokens, dispatcher, logger)
	attendeeService := services.NewAttendeeService(attendeeRepo)
	teamService := services.NewTeamService(tx, teamRepo, membershipRepo, attendeeRepo, submissionRepo, dispatcher, logger)
	inviteService := services.NewInviteService(tx, inviteRepo, teamRepo, membershipRepo, attendeeRepo, dispatcher, logger)
	submissionService := services.NewSubmissionService(tx, submissionRepo, membershipRepo, dispatcher, logger)
	uploadService := services.NewUploadService(uploader, logger)
	logger.Info("services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Dependencies{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		EventService:   eventService,
		AuthService:    authService,
		Health:         handlers.NewHealthHandler(dbConn, logger),
		Auth:           handlers.NewAuthHandler(authService, logger),
		Attendees:      handlers.NewAttendeeHandler(attendeeService, logger),
		Teams:          handlers.NewTeamHandler(teamService, inviteService, logger),
		Submission:     handlers.NewSubmissionHandler(submissionService, uploadService, logger),
		Live:           handlers.NewLiveHandler(hub, cfg.CORSAllowedOrigins, logger),
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		purgeExpiredInvites(gctx, inviteService, cfg.InviteCleanupInterval, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

// purgeExpiredInvites deletes expired team invites once at start and then
// on every tick until ctx ends.
func purgeExpiredInvites(ctx context.Context, invites services.InviteService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("invite cleanup scheduler started", slog.Duration("interval", interval))

	for {
		if _, err := invites.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
			logger.Error("invite cleanup failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
