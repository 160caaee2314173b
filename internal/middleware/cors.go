package middleware

import (
	"strings"

	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig selects which browser origins may call the API with credentials.
type CORSConfig struct {
	// AllowedSuffix matches the frontend host, e.g. ".landlease.app".
	AllowedSuffix string

	// DevPassword lets any origin through when sent in the dev-password header.
	DevPassword string

	// AllowLocalhost admits http://localhost:* and http://127.0.0.1:* origins.
	AllowLocalhost bool
}

const (
	corsAllowMethods  = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders  = "Content-Type, dev-password, " + traceIDHeader
	corsExposeHeaders = traceIDHeader
)

// CORS rejects cross-origin requests from unknown origins and answers preflights for known ones.
// Requests without an Origin header are same-origin or non-browser and pass untouched.
func CORS(cfg CORSConfig) fiber.Handler {
	suffix := strings.ToLower(cfg.AllowedSuffix)
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		c.Vary(fiber.HeaderOrigin)

		if !cfg.allows(c, origin, suffix) {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, fiber.Map{})
		}
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		c.Set(fiber.HeaderAccessControlExposeHeaders, corsExposeHeaders)

		if c.Method() == fiber.MethodOptions {
			c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
			c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func (cfg CORSConfig) allows(c *fiber.Ctx, origin, suffix string) bool {
	lower := strings.ToLower(origin)
	switch {
	case suffix != "" && strings.HasSuffix(lower, suffix):
		return true
	case cfg.AllowLocalhost && (strings.HasPrefix(lower, "http://localhost:") || strings.HasPrefix(lower, "http://127.0.0.1:")):
		return true
	case cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword:
		return true
	}
	return false
}
