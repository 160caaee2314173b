package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// IdentityChange is published on every sign-in and sign-out.
type IdentityChange struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Anonymous bool      `json:"anonymous"`
	SignedIn  bool      `json:"signedIn"`
	At        time.Time `json:"at"`
}

// Broadcaster is the single subscription channel for identity changes. Slow subscribers miss
// changes instead of blocking the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan IdentityChange
	nextID int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan IdentityChange)}
}

// Subscribe returns a buffered channel of changes and a func that unsubscribes and closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan IdentityChange, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan IdentityChange, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(c IdentityChange) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- c:
		default:
			log.Warn().Int("subscriber", id).Str("user_id", c.UserID).Msg("identity change dropped for slow subscriber")
		}
	}
}
