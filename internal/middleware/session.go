package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for the Redis-backed session cookie.
type SessionConfig struct {
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "landlease.sid"
	SessionRedisPrefix = "session:"
	UserSessionsPrefix = "user_sessions:"
	sessionMaxAge      = 24 * time.Hour
	viewKey            = "view"
)

// SessionUser is the identity stored in session data under "user".
type SessionUser struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Anonymous bool   `json:"anonymous"`
}

// SessionCookieGuard encrypts and authenticates cookies with an AES-GCM key derived from secret.
// A cookie that fails to decrypt reaches Session empty, so a forged session id starts a new session.
// Register it before Session.
func SessionCookieGuard(secret string) fiber.Handler {
	key := sha256.Sum256([]byte(secret))
	return encryptcookie.New(encryptcookie.Config{
		Key: base64.StdEncoding.EncodeToString(key[:]),
	})
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// Session returns a Fiber middleware that loads and saves session data from Redis.
// Cookie "landlease.sid" holds "s:"+id; data lives under "session:"+id for 24h.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		// cookie is "s:id" or "s:id.signature"; the id is the first part
		if strings.HasPrefix(sessionID, "s:") {
			parts := strings.SplitN(sessionID[2:], ".", 2)
			sessionID = parts[0]
		}
		key := SessionRedisPrefix + sessionID

		var data map[string]interface{}
		if sessionID != "" {
			b, err := rdb.Get(c.UserContext(), key).Bytes()
			if err == nil {
				_ = json.Unmarshal(b, &data)
			}
		}
		if data == nil {
			data = make(map[string]interface{})
		}

		// Store in Locals for handlers
		c.Locals("session_data", data)
		if u, ok := data["user"]; ok {
			c.Locals("user", u)
		} else {
			c.Locals("user", nil)
		}
		c.Locals("session_id", sessionID)

		err := c.Next()
		if err != nil {
			return err
		}

		// persist whenever a session id exists (cookie sent, or one was started by a handler)
		if sid, _ := c.Locals("session_id").(string); sid != "" {
			if destroyed, _ := c.Locals("session_destroyed").(bool); destroyed {
				return nil
			}
			updated, _ := c.Locals("session_data").(map[string]interface{})
			if updated != nil {
				b, _ := json.Marshal(updated)
				if err := rdb.Set(context.Background(), SessionRedisPrefix+sid, b, sessionMaxAge).Err(); err != nil {
					log.Warn().Err(err).Str("path", c.Path()).Msg("session save failed")
				}
			}
		}
		return nil
	}
}

// GetSessionID returns the current session ID from context (for login/logout).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("session_id").(string)
	return sid
}

// SetSessionUser sets the user in the session and marks session for save.
// Call after login/register; use RegenerateSessionID first to get a new id.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data["user"] = map[string]interface{}{
		"user_id":   user.UserID,
		"email":     user.Email,
		"anonymous": user.Anonymous,
	}
	c.Locals("session_data", data)
	c.Locals("user", data["user"])
}

// RegenerateSessionID creates a new session ID and sets it in Locals (cookie set by handler).
// Cookie value should be "s:"+returned ID.
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.New().String()
	c.Locals("session_id", newID)
	c.Locals("session_destroyed", false)
	return newID
}

// EnsureSession returns the current session id, starting a session and setting its cookie when
// the visitor has none yet.
func EnsureSession(c *fiber.Ctx, cfg SessionConfig) string {
	if sid := GetSessionID(c); sid != "" {
		return sid
	}
	sid := RegenerateSessionID(c)
	cookie := SessionCookieConfig(cfg)
	cookie.Value = "s:" + sid
	c.Cookie(&cookie)
	return sid
}

// DestroySession clears user and session data from Locals and stops the deferred save; the
// caller clears the cookie and the Redis key.
func DestroySession(c *fiber.Ctx) {
	c.Locals("session_data", make(map[string]interface{}))
	c.Locals("user", nil)
	c.Locals("session_destroyed", true)
}

// ClearSessionUser drops the identity but keeps the session (and its view state) alive.
func ClearSessionUser(c *fiber.Ctx) {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data != nil {
		delete(data, "user")
	}
	c.Locals("user", nil)
}

// GetSessionState returns the stored view state (nil when none was saved).
func GetSessionState(c *fiber.Ctx) interface{} {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data == nil {
		return nil
	}
	return data[viewKey]
}

// SetSessionState stores the view state with the session.
func SetSessionState(c *fiber.Ctx, state map[string]interface{}) {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	data[viewKey] = state
	c.Locals("session_data", data)
}

// SessionCookieConfig returns the cookie options used for both setting and clearing.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	secure := cfg.IsProduction && cfg.AllowCrossSiteDev
	return fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}

// DestroyUserSessions removes every session of a user: each session:<sid> key and the
// user_sessions:<user_id> set.
func DestroyUserSessions(ctx context.Context, rdb *redis.Client, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	key := UserSessionsPrefix + userID
	sessionIDs, err := rdb.SMembers(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, SessionRedisPrefix+sid)
	}
	keys = append(keys, key)
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(sessionIDs), nil
}
