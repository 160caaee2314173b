// Package session tracks who is signed in and which screen they are on. State is an explicit
// value stored with the HTTP session and handed to the listing lifecycle as a domain.Actor.
package session

import (
	"fmt"

	"landlease/internal/domain"
)

type Screen string

const (
	ScreenWelcome Screen = "welcome"
	ScreenAuth    Screen = "auth"
	ScreenRole    Screen = "role"
	ScreenSeller  Screen = "seller"
	ScreenBuyer   Screen = "buyer"
	ScreenResults Screen = "results"
)

type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// State is one visitor's view state.
type State struct {
	Screen    Screen `json:"screen"`
	Mode      Mode   `json:"mode"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// Initial is the state of a visitor with no session.
func Initial() State {
	return State{Screen: ScreenWelcome, Mode: ModeLogin}
}

func (s State) SignedIn() bool {
	return s.UserID != ""
}

// Actor is the identity the listing lifecycle acts for.
func (s State) Actor() domain.Actor {
	return domain.Actor{UserID: s.UserID, Email: s.Email, Anonymous: s.Anonymous}
}

// transitions lists the screens reachable from each screen; the bool marks targets that need an identity.
var transitions = map[Screen]map[Screen]bool{
	ScreenWelcome: {ScreenAuth: false},
	ScreenAuth:    {ScreenWelcome: false, ScreenRole: true},
	ScreenRole:    {ScreenSeller: true, ScreenBuyer: true, ScreenWelcome: false},
	ScreenSeller:  {ScreenWelcome: false},
	ScreenBuyer:   {ScreenWelcome: false, ScreenResults: true},
	ScreenResults: {ScreenBuyer: true},
}

func ParseScreen(s string) (Screen, error) {
	sc := Screen(s)
	if _, ok := transitions[sc]; !ok {
		return "", domain.ValidationError(fmt.Sprintf("Unknown screen %q", s))
	}
	return sc, nil
}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return "", nil
	case ModeLogin, ModeRegister:
		return Mode(s), nil
	}
	return "", domain.ValidationError(fmt.Sprintf("Unknown mode %q", s))
}

// Navigate moves to screen to. Entering the auth screen may set the mode; an empty mode keeps
// the current one.
func (s State) Navigate(to Screen, mode Mode) (State, error) {
	needsIdentity, ok := transitions[s.Screen][to]
	if !ok {
		return s, domain.ValidationError(fmt.Sprintf("Cannot go from %s to %s", s.Screen, to))
	}
	if needsIdentity && !s.SignedIn() {
		return s, domain.ValidationError("Sign in first")
	}
	next := s
	next.Screen = to
	if to == ScreenAuth && mode != "" {
		next.Mode = mode
	}
	return next, nil
}

// SignsOut reports whether leaving s for to also ends the identity. Backing out of the signed-in
// area to the welcome screen is a sign-out.
func (s State) SignsOut(to Screen) bool {
	if to != ScreenWelcome {
		return false
	}
	switch s.Screen {
	case ScreenRole, ScreenSeller, ScreenBuyer:
		return true
	}
	return false
}

// ToggleMode flips login/register. Only valid on the auth screen.
func (s State) ToggleMode() (State, error) {
	if s.Screen != ScreenAuth {
		return s, domain.ValidationError("Mode can only be changed on the sign-in screen")
	}
	next := s
	if s.Mode == ModeRegister {
		next.Mode = ModeLogin
	} else {
		next.Mode = ModeRegister
	}
	return next, nil
}

// SignIn records an identity and moves to role selection.
func (s State) SignIn(userID, email string, anonymous bool) State {
	return State{Screen: ScreenRole, Mode: s.orLogin(), UserID: userID, Email: email, Anonymous: anonymous}
}

// SignOut drops the identity and returns to the welcome screen.
func (s State) SignOut() State {
	return State{Screen: ScreenWelcome, Mode: s.orLogin()}
}

func (s State) orLogin() Mode {
	if s.Mode == "" {
		return ModeLogin
	}
	return s.Mode
}

// FromMap reads a State stored in session data, falling back to Initial for missing fields.
func FromMap(v interface{}) State {
	st := Initial()
	m, ok := v.(map[string]interface{})
	if !ok {
		return st
	}
	if sc, ok := m["screen"].(string); ok {
		if parsed, err := ParseScreen(sc); err == nil {
			st.Screen = parsed
		}
	}
	if md, ok := m["mode"].(string); ok {
		if parsed, err := ParseMode(md); err == nil && parsed != "" {
			st.Mode = parsed
		}
	}
	st.UserID, _ = m["userId"].(string)
	st.Email, _ = m["email"].(string)
	st.Anonymous, _ = m["anonymous"].(bool)
	return st
}

// ToMap is the session-data form of s.
func (s State) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"screen":    string(s.Screen),
		"mode":      string(s.Mode),
		"userId":    s.UserID,
		"email":     s.Email,
		"anonymous": s.Anonymous,
	}
}
