package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"landlease/internal/domain"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const errorLogSize = 50

// ErrorHandler is the global error handler. Typed domain errors keep their status mapping,
// fiber errors keep their code, anything else is a generic 500. Server errors are appended to the
// health error log when rdb is set.
func ErrorHandler(rdb *redis.Client) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"
		details := map[string]interface{}{}

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			message = fe.Message
		case domain.KindOf(err) != "":
			code = response.StatusFor(err)
			message = domain.Message(err)
			details["kind"] = string(domain.KindOf(err))
		}

		if code >= fiber.StatusInternalServerError {
			Logger(c).Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
			recordError(rdb, c, code, err)
		}
		return response.Error(c, message, code, details)
	}
}

// ErrorLog records 5xx errors that handlers rendered themselves through response.FromError.
// Errors returned to fiber are logged by ErrorHandler instead.
func ErrorLog(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if err := response.ServerError(c); err != nil {
			code := c.Response().StatusCode()
			Logger(c).Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Int("status", code).Msg("request failed")
			recordError(rdb, c, code, err)
		}
		return nil
	}
}

func recordError(rdb *redis.Client, c *fiber.Ctx, code int, err error) {
	if rdb == nil {
		return
	}
	entry, _ := json.Marshal(map[string]interface{}{
		"time":       time.Now().UTC(),
		"path":       c.OriginalURL(),
		"method":     c.Method(),
		"statusCode": code,
		"traceId":    GetTraceID(c),
		"message":    err.Error(),
	})
	ctx := context.Background()
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, KeyErrorLog, entry)
	pipe.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
	if _, perr := pipe.Exec(ctx); perr != nil {
		log.Warn().Err(perr).Msg("error log write failed")
	}
}
