// Package bootstrap wires stores and services for the server and linfoctl.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/blob"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/cache"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/camera"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/database"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/identity"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/mailer"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type Options struct {
	// Camera opens the configured camera driver. Operator commands leave it off.
	Camera bool
}

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Remote remote.Store
	Blobs  blob.Store
	Links  *blob.Links
	Cache  *cache.Store
	Camera *camera.Guard

	Auth     *services.AuthService
	Patients *services.PatientService
	Captures *services.CaptureService
	Reports  *services.ReportService
	Sync     *services.SyncService

	mongoClient *mongo.Client
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	if err := database.Connect(cfg); err != nil {
		return nil, err
	}
	if err := database.Migrate(database.DB); err != nil {
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}
	a.DB = database.DB
	a.Cache = cache.New(a.DB)

	if err := a.openRemote(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if opts.Camera {
		guard, err := camera.Open(cfg)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("camera init failed: %w", err)
		}
		a.Camera = guard
		slog.Info("camera ready", "driver", cfg.CameraDriver, "high_res_capture", cfg.CaptureHighRes)
	}

	var verifier services.TokenVerifier
	if cfg.IdentityJWKSURL != "" && cfg.IdentityAudience != "" {
		verifier = identity.NewVerifier(cfg.IdentityJWKSURL, cfg.IdentityIssuer, cfg.IdentityAudience)
	}

	var pdfMailer services.PDFMailer
	if m := mailer.New(cfg); m != nil {
		pdfMailer = m
	}

	a.Auth = services.NewAuthService(a.Remote, cfg, verifier)
	a.Patients = services.NewPatientService(a.Remote, a.Blobs, a.Cache)
	a.Reports = services.NewReportService(a.Remote, pdfMailer, cfg)
	a.Sync = services.NewSyncService(a.Remote, a.Blobs, a.Cache)
	if a.Camera != nil {
		a.Captures = services.NewCaptureService(a.Remote, a.Blobs, a.Cache, a.Camera, cfg)
	}
	return a, nil
}

func (a *App) openRemote(ctx context.Context) error {
	a.Links = blob.NewLinks(a.Config.PublicBaseURL, []byte(a.Config.MediaSigningKey))

	switch a.Config.RemoteDriver {
	case "mongo":
		client, db, err := remote.Connect(ctx, a.Config.MongoURI, a.Config.MongoDatabase)
		if err != nil {
			return err
		}
		a.mongoClient = client

		store := remote.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("remote index setup failed: %w", err)
		}
		blobs, err := blob.NewGridFS(db, a.Config.BlobBucket, a.Links)
		if err != nil {
			return err
		}
		a.Remote, a.Blobs = store, blobs
	case "memory":
		slog.Warn("using in-memory remote store; data is lost on restart")
		a.Remote = remote.NewMemoryStore()
		a.Blobs = blob.NewMemory(a.Links)
	default:
		return fmt.Errorf("unknown remote driver %q", a.Config.RemoteDriver)
	}
	slog.Info("remote store connected", "driver", a.Config.RemoteDriver)
	return nil
}

// PingCache checks the local cache connection.
func (a *App) PingCache() error {
	return database.Ping()
}

// Close releases the camera, the remote client and the cache database.
func (a *App) Close(ctx context.Context) {
	if a.Camera != nil {
		_ = a.Camera.Close()
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			slog.Error("remote disconnect error", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("database close error", "error", err)
			}
		}
	}
}
