package domain

// Actor is the identity a request acts on behalf of. It is passed explicitly into every
// lifecycle call instead of being read from shared state.
type Actor struct {
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// Authenticated reports whether the actor is a signed-in, non-anonymous user.
func (a Actor) Authenticated() bool {
	return a.UserID != "" && !a.Anonymous
}
