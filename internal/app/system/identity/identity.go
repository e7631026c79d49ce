// Package identity wraps the remote identity provider. The provider
// owns credentials; this package only exchanges them for sessions and
// relays the provider's session-changed notifications.
//
// Two things come out of here: promise-style call results (SignIn,
// SignUp, SignOut, Restore) and asynchronous Events. The auth session
// manager reconciles the two; nothing else should consume Events
// directly.
package identity

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// Session is an authenticated provider session.
type Session struct {
	Email string
	Token *oauth2.Token
}

// PersistentToken returns the identifier worth caching across
// restarts. Absence of a cached token means anonymous.
func (s *Session) PersistentToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.RefreshToken
}

// Event is a session-changed notification. The provider may emit one
// at any time: at cold start (session restore), as a side effect of
// SignIn/SignUp, or when a session is revoked remotely.
type Event struct {
	SignedIn bool
	Email    string // set when SignedIn
}

// Provider is the surface the rest of the client sees. The remote
// service behind it is opaque.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context, token string) (*Session, error)

	// Subscribe registers fn for session-changed events and returns
	// a cancel func. fn is called from the provider's goroutine and
	// must not block.
	Subscribe(fn func(Event)) (cancel func())
}

// Broadcaster fans Events out to subscribers. Implementations of
// Provider embed it; tests use it to inject notifications.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// Subscribe implements the Provider subscription surface.
func (b *Broadcaster) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Emit delivers ev to every current subscriber.
func (b *Broadcaster) Emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
