package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/remote"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// UserLookup resolves a session subject to its stored user.
type UserLookup interface {
	Lookup(ctx context.Context, uid string) (*remote.User, error)
}

// LoadSession resolves the verified token subject against the users
// collection. Role and team are taken from the stored user only.
func LoadSession(users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := tenant.GetUserID(c)
		if err != nil {
			return RedirectToLogin(c)
		}

		user, err := users.Lookup(c.UserContext(), uid)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return RedirectToLogin(c)
			}
			slog.Error("session lookup failed", "user_id", uid, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "User directory unavailable, try again",
			})
		}

		tenant.SetSession(c, &tenant.Session{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
			TeamID: user.TeamID,
		})
		return c.Next()
	}
}

// RequireRole admits sessions whose role is listed.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := tenant.GetSession(c)
		if session == nil {
			return RedirectToLogin(c)
		}
		if !session.HasRole(roles...) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Your role does not allow this action",
			})
		}
		return c.Next()
	}
}
