package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/config"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/dto"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/linfoscopio/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	return c.JSON(dto.MessageResponse{Message: "Sign in with email and password, or post an identity token to /session_login"})
}

func (h *AuthHandler) RegisterPage(c *fiber.Ctx) error {
	return c.JSON(dto.MessageResponse{Message: "Register with email and password; add join_code to join an existing team"})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	resp, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return respondError(c, "register", err)
	}
	h.setSessionCookie(c, resp)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	resp, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return respondError(c, "login", err)
	}
	h.setSessionCookie(c, resp)
	return c.JSON(resp)
}

func (h *AuthHandler) SessionLogin(c *fiber.Ctx) error {
	var req dto.SessionLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}

	resp, err := h.authService.SessionLogin(c.UserContext(), &req)
	if err != nil {
		return respondError(c, "session_login", err)
	}
	h.setSessionCookie(c, resp)
	return c.JSON(resp)
}

// Logout clears the session cookie. Tokens are stateless and simply expire.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(middleware.LoginPath, fiber.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, resp *dto.AuthResponse) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    resp.SessionToken,
		Expires:  time.Unix(resp.ExpiresAt, 0),
		HTTPOnly: true,
		Secure:   h.cfg.AppEnv == "production",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
