// Package session holds the single source of truth for "who is logged in".
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

// State is the current authentication state. Session and Identity are always
// both set or both nil.
type State struct {
	Session  *models.Session
	Identity *models.Identity
}

// LoggedIn returns true when a session is active.
func (s State) LoggedIn() bool {
	return s.Session != nil
}

type subscriber struct {
	id int
	fn func(State)
}

// Store holds the current session and identity and fans out every change to
// its subscribers. Construct one per process (or per test) and inject it;
// there is no package-level instance.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    []subscriber
	nextSub int
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current state. No side effects.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set replaces the state and notifies all subscribers synchronously in
// registration order. If either value is nil the state is cleared entirely,
// keeping the session/identity pairing invariant.
func (s *Store) Set(sess *models.Session, ident *models.Identity) {
	s.mu.Lock()
	if sess == nil || ident == nil {
		s.state = State{}
	} else {
		s.state = State{Session: sess, Identity: ident}
	}
	state := s.state

	// Notify over a snapshot of the subscriber list so listeners can
	// subscribe or unsubscribe during the pass without corrupting iteration.
	snapshot := make([]subscriber, len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, sub := range snapshot {
		sub.fn(state)
	}
}

// Clear drops the session and identity and notifies subscribers.
func (s *Store) Clear() {
	s.Set(nil, nil)
}

// Subscribe registers a listener invoked on every Set. The returned handle
// removes the listener; calling it more than once is a no-op.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Bootstrap restores the session from the provider's point-in-time read.
// The session is sourced from the server, not local storage, so it survives
// only as long as the server allows; subsequent invalidation arrives via the
// provider's event stream.
func (s *Store) Bootstrap(ctx context.Context, ap provider.AuthProvider) error {
	sess, err := ap.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if sess == nil {
		log.Debug().Msg("no session to restore")
		return nil
	}

	ident := sess.Identity
	s.Set(sess, &ident)

	log.Debug().Str("email", ident.Email).Msg("session restored")

	return nil
}
