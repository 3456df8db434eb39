package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	users middleware.UserLookup,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	patientHandler *handlers.PatientHandler,
	captureHandler *handlers.CaptureHandler,
	streamHandler *handlers.StreamHandler,
	reportHandler *handlers.ReportHandler,
	mediaHandler *handlers.MediaHandler,
	adminHandler *handlers.AdminHandler,
) {
	// Public
	app.Get("/health", healthHandler.Check)
	app.Get("/media/*", mediaHandler.Serve)

	// Auth: 10 req/min per IP
	authLimit := limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
	app.Get("/login", authHandler.LoginPage)
	app.Post("/login", authLimit, authHandler.Login)
	app.Post("/session_login", authLimit, authHandler.SessionLogin)
	app.Get("/register", authHandler.RegisterPage)
	app.Post("/register", authLimit, authHandler.Register)
	app.Get("/logout", authHandler.Logout)

	// Everything below needs a session resolved against the users collection.
	session := []fiber.Handler{middleware.JWTProtected(cfg), middleware.LoadSession(users)}
	anyRole := middleware.RequireRole(tenant.RoleDoctor, tenant.RoleSecretaria)
	doctor := middleware.RequireRole(tenant.RoleDoctor)

	protect := func(h ...fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, session...), h...)
	}

	app.Get("/", protect(anyRole, patientHandler.Dashboard)...)
	app.Post("/add_patient", protect(anyRole, patientHandler.Add)...)
	app.Post("/register_patient", protect(anyRole, patientHandler.Add)...)
	app.Get("/patient/:id", protect(anyRole, patientHandler.Detail)...)
	app.Post("/patient/:id/history", protect(doctor, patientHandler.UpdateHistory)...)
	app.Post("/delete_patient/:id", protect(doctor, patientHandler.Delete)...)

	app.Get("/video_feed", protect(doctor, streamHandler.VideoFeed)...)
	app.Get("/capture", protect(doctor, middleware.SameOrigin(), captureHandler.Capture)...)
	app.Post("/capture", protect(doctor, captureHandler.Capture)...)
	app.Post("/delete_capture/:id", protect(doctor, captureHandler.Delete)...)
	app.Post("/save_annotation/:id", protect(doctor, captureHandler.SaveAnnotation)...)

	app.Post("/create_report/:patientId", protect(doctor, reportHandler.Create)...)
	app.Get("/generate_report/:id", protect(anyRole, reportHandler.Generate)...)
	app.Post("/send_report/:id", protect(anyRole, reportHandler.Send)...)

	app.Post("/admin/resync", protect(doctor, adminHandler.Resync)...)
}
