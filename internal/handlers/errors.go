package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors onto status codes. Anything unknown is
// logged and reported as a bare 500.
func respondError(c *fiber.Ctx, action string, err error) error {
	status, message := fiber.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, services.ErrForbidden):
		status, message = fiber.StatusForbidden, "Your role does not allow this action"
	case errors.Is(err, services.ErrNotFoundOrForbidden), errors.Is(err, services.ErrUserNotFound):
		status, message = fiber.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrCameraUnavailable):
		status, message = fiber.StatusServiceUnavailable, "Camera unavailable, no frame was captured"
	case errors.Is(err, services.ErrPartialDelete):
		status, message = fiber.StatusServiceUnavailable, "Some items could not be deleted, retry the request"
	case errors.Is(err, services.ErrUpstreamUnavailable):
		status, message = fiber.StatusServiceUnavailable, "Remote storage unavailable, try again"
	case errors.Is(err, services.ErrMailDisabled):
		status, message = fiber.StatusServiceUnavailable, "Email delivery is not configured"
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidJoinCode),
		errors.Is(err, services.ErrInvalidRole):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrDuplicatePatient), errors.Is(err, services.ErrEmailTaken):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		status, message = fiber.StatusUnauthorized, err.Error()
	}

	attrs := []any{"action", action, "error", err, "request_id", requestID(c)}
	if s := tenant.GetSession(c); s != nil {
		attrs = append(attrs, "user_id", s.UserID, "team_id", s.TeamID)
	}
	switch {
	case status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable:
		slog.Error("request failed", attrs...)
	case status == fiber.StatusServiceUnavailable:
		slog.Warn("request degraded", attrs...)
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
