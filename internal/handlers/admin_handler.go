package handlers

import (
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	sync *services.SyncService
}

func NewAdminHandler(sync *services.SyncService) *AdminHandler {
	return &AdminHandler{sync: sync}
}

// Resync rebuilds the local cache for the caller's team.
func (h *AdminHandler) Resync(c *fiber.Ctx) error {
	session := tenant.GetSession(c)
	res, err := h.sync.Resync(c.UserContext(), session.TeamID)
	if err != nil {
		return respondError(c, "resync", err)
	}
	return c.JSON(res)
}
