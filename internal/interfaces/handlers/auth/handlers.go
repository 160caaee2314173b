package auth

import (
	"context"
	"errors"

	authsvc "landlease/internal/application/auth"
	sessionsvc "landlease/internal/application/session"
	"landlease/internal/middleware"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	Service     *authsvc.Service
	Rdb         *redis.Client
	Config      middleware.SessionConfig
	Broadcaster *sessionsvc.Broadcaster
}

// Register POST /api/v1/auth/register: create the user and start a session.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req authsvc.Credentials
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}
	id, err := h.Service.Register(c.UserContext(), req)
	if err != nil {
		return authError(c, err)
	}
	state, err := h.startSession(c, id)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.SuccessCreated(c, "Registration successful", fiber.Map{"user": id, "session": state}, nil)
}

// Login POST /api/v1/auth/login: verify credentials and start a session.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req authsvc.Credentials
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}
	id, err := h.Service.Login(c.UserContext(), req)
	if err != nil {
		return authError(c, err)
	}
	state, err := h.startSession(c, id)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Login successful", fiber.Map{"user": id, "session": state}, nil)
}

// Anonymous POST /api/v1/auth/anonymous: start a guest session.
func (h *Handlers) Anonymous(c *fiber.Ctx) error {
	id := h.Service.Anonymous()
	state, err := h.startSession(c, id)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Signed in anonymously", fiber.Map{"user": id, "session": state}, nil)
}

// Me GET /api/v1/auth/me: the current identity.
func (h *Handlers) Me(c *fiber.Ctx) error {
	id, err := authsvc.VerifyIdentity(middleware.GetUser(c))
	if err != nil {
		if middleware.GetSessionID(c) == "" {
			log.Debug().Str("path", c.Path()).Bool("cookie_present", c.Cookies(middleware.SessionCookieName) != "").Msg("auth/me: no session")
		}
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": id}, nil)
}

// Logout DELETE /api/v1/auth/logout: forget the session and clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	actor := middleware.GetActor(c)
	ctx := context.Background()

	if actor.UserID != "" && sessionID != "" {
		_ = h.Rdb.SRem(ctx, middleware.UserSessionsPrefix+actor.UserID, sessionID).Err()
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	if actor.UserID != "" {
		h.publish(sessionsvc.IdentityChange{UserID: actor.UserID, Email: actor.Email, Anonymous: actor.Anonymous})
	}
	return response.Success(c, "Logged out successfully", fiber.Map{"session": sessionsvc.Initial()}, nil)
}

// LogoutAll DELETE /api/v1/auth/sessions: end every session of the signed-in user.
func (h *Handlers) LogoutAll(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)
	if actor.UserID == "" {
		return response.Unauthorized(c, "Unauthorized")
	}
	n, err := middleware.DestroyUserSessions(context.Background(), h.Rdb, actor.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", actor.UserID).Msg("session invalidation failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	middleware.DestroySession(c)
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	h.publish(sessionsvc.IdentityChange{UserID: actor.UserID, Email: actor.Email, Anonymous: actor.Anonymous})
	return response.Success(c, "All sessions ended", fiber.Map{"sessions": n, "session": sessionsvc.Initial()}, nil)
}

// startSession issues a fresh session id for the identity, carries the view state over and
// moves it to role selection.
func (h *Handlers) startSession(c *fiber.Ctx, id *authsvc.Identity) (sessionsvc.State, error) {
	ctx := context.Background()
	if old := middleware.GetSessionID(c); old != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+old).Err()
	}
	sessionID := middleware.RegenerateSessionID(c)
	middleware.SetSessionUser(c, middleware.SessionUser{UserID: id.UserID, Email: id.Email, Anonymous: id.Anonymous})
	state := sessionsvc.FromMap(middleware.GetSessionState(c)).SignIn(id.UserID, id.Email, id.Anonymous)
	middleware.SetSessionState(c, state.ToMap())

	if err := h.Rdb.SAdd(ctx, middleware.UserSessionsPrefix+id.UserID, sessionID).Err(); err != nil {
		return state, err
	}
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	h.publish(sessionsvc.IdentityChange{UserID: id.UserID, Email: id.Email, Anonymous: id.Anonymous, SignedIn: true})
	return state, nil
}

func (h *Handlers) publish(change sessionsvc.IdentityChange) {
	if h.Broadcaster != nil {
		h.Broadcaster.Publish(change)
	}
}

func authError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, authsvc.ErrEmailPasswordRequired), errors.Is(err, authsvc.ErrWeakPassword):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, authsvc.ErrInvalidEmail), errors.Is(err, authsvc.ErrIncorrectPassword):
		return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
	case errors.Is(err, authsvc.ErrEmailTaken):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("auth failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}
