package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/bootstrap"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/logging"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/routes"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(logging.ParseLevel(cfg.LogLevel))

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := bootstrap.New(startCtx, cfg, bootstrap.Options{Camera: true})
	cancelStart()
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	// Cache database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(app.DB, 5*time.Second)
	logging.Setup(logging.ParseLevel(cfg.LogLevel), dbLogHandler)

	// Background jobs
	jobsDone := make(chan struct{})
	logging.StartCleanup(app.DB, cfg.LogRetentionDays, jobsDone)
	services.StartPeriodic("cache_resync", cfg.CacheResyncInterval, jobsDone, func(ctx context.Context) error {
		_, err := app.Sync.ResyncAll(ctx)
		return err
	})
	services.StartPeriodic("blob_sweep", cfg.BlobSweepInterval, jobsDone, func(ctx context.Context) error {
		_, err := app.Sync.SweepOrphanBlobs(ctx, false)
		return err
	})

	// Handlers
	authHandler := handlers.NewAuthHandler(app.Auth, cfg)
	healthHandler := handlers.NewHealthHandler(app.PingCache, app.Remote.Ping, app.Camera)
	patientHandler := handlers.NewPatientHandler(app.Patients)
	captureHandler := handlers.NewCaptureHandler(app.Captures)
	streamHandler := handlers.NewStreamHandler(app.Camera, cfg.StreamFPS)
	reportHandler := handlers.NewReportHandler(app.Reports)
	mediaHandler := handlers.NewMediaHandler(app.Blobs, app.Links)
	adminHandler := handlers.NewAdminHandler(app.Sync)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	server := fiber.New(fiber.Config{
		BodyLimit:    cfg.MaxAnnotationBytes*2 + 1024*1024,
		ErrorHandler: customErrorHandler,
	})

	server.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	server.Use(middleware.CORS(cfg))
	server.Use(middleware.SecurityHeaders())

	routes.Setup(server, cfg, app.Auth,
		authHandler, healthHandler, patientHandler, captureHandler, streamHandler,
		reportHandler, mediaHandler, adminHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(jobsDone)
	// Closing the camera first ends open video streams.
	if app.Camera != nil {
		_ = app.Camera.Close()
	}
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	app.Close(stopCtx)

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
