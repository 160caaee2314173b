package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RouteLogger writes one line per request once the response status is known. Errors returned by
// handlers are rendered here through the app's ErrorHandler so outer middleware sees the final status.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = Logger(c).Error()
		case status >= 400:
			ev = Logger(c).Warn()
		default:
			ev = Logger(c).Info()
		}
		if a := GetActor(c); a.UserID != "" {
			ev = ev.Str("user_id", a.UserID)
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Int64("ms", time.Since(start).Milliseconds()).
			Msg("request")
		return nil
	}
}
