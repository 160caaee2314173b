package session

import (
	"context"

	sessionsvc "landlease/internal/application/session"
	"landlease/internal/middleware"
	"landlease/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Handlers serves the view router: which screen a visitor is on and which identity drives it.
type Handlers struct {
	Rdb         *redis.Client
	Config      middleware.SessionConfig
	Broadcaster *sessionsvc.Broadcaster
}

// NavigateRequest is the body of POST /api/v1/session/navigate.
type NavigateRequest struct {
	Screen string `json:"screen"`
	Mode   string `json:"mode"`
}

// current merges the stored view state with the session identity. The identity wins.
func current(c *fiber.Ctx) sessionsvc.State {
	st := sessionsvc.FromMap(middleware.GetSessionState(c))
	actor := middleware.GetActor(c)
	if actor.UserID == "" {
		if st.SignedIn() {
			return st.SignOut()
		}
		return st
	}
	if !st.SignedIn() || st.UserID != actor.UserID {
		return st.SignIn(actor.UserID, actor.Email, actor.Anonymous)
	}
	return st
}

// Get GET /api/v1/session
func (h *Handlers) Get(c *fiber.Ctx) error {
	return response.Success(c, "Session fetched", fiber.Map{"session": current(c)}, nil)
}

// Navigate POST /api/v1/session/navigate. Leaving the signed-in area for the welcome screen
// signs the visitor out.
func (h *Handlers) Navigate(c *fiber.Ctx) error {
	var req NavigateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	to, err := sessionsvc.ParseScreen(req.Screen)
	if err != nil {
		return response.FromError(c, err)
	}
	mode, err := sessionsvc.ParseMode(req.Mode)
	if err != nil {
		return response.FromError(c, err)
	}

	st := current(c)
	next, err := st.Navigate(to, mode)
	if err != nil {
		return response.FromError(c, err)
	}
	if st.SignsOut(to) {
		h.signOut(c, st)
		next = st.SignOut()
	}
	h.save(c, next)
	return response.Success(c, "Navigated", fiber.Map{"session": next}, nil)
}

// ToggleMode POST /api/v1/session/toggle-mode
func (h *Handlers) ToggleMode(c *fiber.Ctx) error {
	next, err := current(c).ToggleMode()
	if err != nil {
		return response.FromError(c, err)
	}
	h.save(c, next)
	return response.Success(c, "Mode changed", fiber.Map{"session": next}, nil)
}

func (h *Handlers) save(c *fiber.Ctx, st sessionsvc.State) {
	middleware.EnsureSession(c, h.Config)
	middleware.SetSessionState(c, st.ToMap())
}

func (h *Handlers) signOut(c *fiber.Ctx, st sessionsvc.State) {
	if sid := middleware.GetSessionID(c); sid != "" && h.Rdb != nil {
		_ = h.Rdb.SRem(context.Background(), middleware.UserSessionsPrefix+st.UserID, sid).Err()
	}
	middleware.ClearSessionUser(c)
	if h.Broadcaster != nil {
		h.Broadcaster.Publish(sessionsvc.IdentityChange{UserID: st.UserID, Email: st.Email, Anonymous: st.Anonymous})
	}
}
