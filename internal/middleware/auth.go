package middleware

import (
	"landlease/internal/domain"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures an identity (registered or anonymous) is in the session. Returns 401 with
// the standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetActor(c).UserID == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// GetActor returns the identity the request acts for. The zero Actor means signed out.
func GetActor(c *fiber.Ctx) domain.Actor {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return domain.Actor{}
	}
	var a domain.Actor
	a.UserID, _ = m["user_id"].(string)
	a.Email, _ = m["email"].(string)
	a.Anonymous, _ = m["anonymous"].(bool)
	return a
}
