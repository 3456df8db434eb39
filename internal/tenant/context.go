package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleDoctor     = "doctor"
	RoleSecretaria = "secretaria"
)

// ValidRole reports whether role is one the application grants.
func ValidRole(role string) bool {
	return role == RoleDoctor || role == RoleSecretaria
}

// Session is the authorization context of one request. Role and TeamID come
// from the users collection, never from the token.
type Session struct {
	UserID string
	Email  string
	Role   string
	TeamID string
}

func (s *Session) HasRole(roles ...string) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

const sessionKey = "session"

func SetSession(c *fiber.Ctx, s *Session) {
	c.Locals(sessionKey, s)
}

// GetSession returns the session stored by the session middleware, or nil.
func GetSession(c *fiber.Ctx) *Session {
	s, _ := c.Locals(sessionKey).(*Session)
	return s
}

// GetUserID extracts the user id from JWT claims in context.
func GetUserID(c *fiber.Ctx) (string, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return "", errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}
