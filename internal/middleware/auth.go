package middleware

import (
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

const (
	SessionCookie = "session"
	LoginPath     = "/login"
)

// JWTProtected accepts the session token from a bearer header or the
// session cookie. Anything else goes back to the login page.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		TokenLookup: "header:Authorization,cookie:" + SessionCookie,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return RedirectToLogin(c)
		},
	})
}

// RedirectToLogin drops any stale session cookie and sends a 303.
func RedirectToLogin(c *fiber.Ctx) error {
	if c.Cookies(SessionCookie) != "" {
		c.ClearCookie(SessionCookie)
	}
	return c.Redirect(LoginPath, fiber.StatusSeeOther)
}
