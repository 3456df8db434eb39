package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/camera"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	pingCache  func() error
	pingRemote func(ctx context.Context) error
	camera     *camera.Guard
}

func NewHealthHandler(pingCache func() error, pingRemote func(ctx context.Context) error, cam *camera.Guard) *HealthHandler {
	return &HealthHandler{pingCache: pingCache, pingRemote: pingRemote, camera: cam}
}

// Check reports each dependency separately. The service stays "ok" when only
// the cache is down since the remote authority can rebuild it.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"

	cacheStatus := "ok"
	if err := h.pingCache(); err != nil {
		cacheStatus = "unhealthy: " + err.Error()
	}

	remoteStatus := "ok"
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()
	if err := h.pingRemote(ctx); err != nil {
		remoteStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	var cam any = "not configured"
	if h.camera != nil {
		stats := h.camera.Stats()
		if stats.Closed {
			status = "degraded"
		}
		cam = stats
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Cache:     cacheStatus,
		Remote:    remoteStatus,
		Camera:    cam,
	})
}
