// Package auth brokers all authentication intents against the remote
// provider and owns the provider's auth-state subscription. Login and logout
// are two-phase: the call returning nil means the request was accepted, and
// the session store is populated or cleared only when the provider's
// corresponding event arrives.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
	"github.com/wolfeidau/pricescout/internal/session"
)

// LandingRoute is where the presentation layer is told to navigate after a
// sign-out completes.
const LandingRoute = "/"

// Gateway normalizes provider auth operations into the package's error
// taxonomy and propagates auth-state transitions into the session store.
type Gateway struct {
	provider provider.AuthProvider
	sessions *session.Store

	redirects chan string

	closeOnce   sync.Once
	unsubscribe func()
}

// NewGateway creates a gateway and subscribes once to the provider's
// auth-state stream. Call Close to release the subscription.
func NewGateway(ap provider.AuthProvider, sessions *session.Store) *Gateway {
	g := &Gateway{
		provider:  ap,
		sessions:  sessions,
		redirects: make(chan string, 8),
	}
	g.unsubscribe = ap.OnAuthStateChange(g.handleAuthEvent)
	return g
}

// Close releases the provider subscription. Safe to call more than once.
func (g *Gateway) Close() {
	g.closeOnce.Do(g.unsubscribe)
}

// Redirects delivers navigation requests the gateway emits as side effects,
// such as the return to the landing route after sign-out. The channel is
// buffered; if nobody is draining it, requests are dropped with a logged
// diagnostic rather than blocking the event stream.
func (g *Gateway) Redirects() <-chan string {
	return g.redirects
}

// Login validates locally, then asks the provider to sign in. A nil return
// means the request was accepted; callers must not assume the session store
// is populated until the SignedIn event lands.
func (g *Gateway) Login(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	if err := g.provider.SignInWithPassword(ctx, email, password); err != nil {
		if errors.Is(err, provider.ErrInvalidCredentials) {
			return fmt.Errorf("%w", ErrInvalidCredentials)
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	log.Debug().Str("email", email).Msg("login request accepted")

	return nil
}

// Signup creates an account with the name metadata attached, then performs
// an implicit login with the same credentials so the caller is not forced
// through a second explicit login. When the provider gates the account on
// email verification, ErrPendingVerification is returned instead.
func (g *Gateway) Signup(ctx context.Context, firstName, lastName, email, password string) error {
	if err := validateNames(firstName, lastName); err != nil {
		return err
	}
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	result, err := g.provider.SignUp(ctx, provider.SignUpParams{
		Email:    email,
		Password: password,
		Metadata: models.Metadata{FirstName: firstName, LastName: lastName},
	})
	if err != nil {
		if errors.Is(err, provider.ErrDuplicateAccount) {
			return fmt.Errorf("%w", ErrDuplicateAccount)
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if result.RequiresVerification {
		log.Info().Str("email", email).Msg("signup accepted, verification required")
		return fmt.Errorf("%w", ErrPendingVerification)
	}

	// Some backends report a duplicate as a successful response carrying no
	// new identity rather than an error.
	if result.Identity == nil {
		return fmt.Errorf("%w", ErrDuplicateAccount)
	}

	log.Info().Str("email", email).Str("user_id", result.Identity.ID).Msg("account created")

	return g.Login(ctx, email, password)
}

// Logout requests provider sign-out. The session store is cleared only when
// the SignedOut event arrives. Calling Logout while already signed out is a
// no-op, not an error.
func (g *Gateway) Logout(ctx context.Context) error {
	if !g.sessions.Get().LoggedIn() {
		return nil
	}

	if err := g.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	log.Debug().Msg("logout request accepted")

	return nil
}

// UpdateProfile merges the partial metadata remotely, then applies the same
// patch to the locally held identity optimistically; the provider is not
// re-queried. Without an active session this is an intentional no-op
// success.
func (g *Gateway) UpdateProfile(ctx context.Context, patch models.MetadataPatch) error {
	state := g.sessions.Get()
	if !state.LoggedIn() {
		return nil
	}
	if patch.IsZero() {
		return nil
	}

	if err := g.provider.UpdateUser(ctx, patch); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	ident := *state.Identity
	ident.Metadata = patch.Apply(ident.Metadata)

	sess := *state.Session
	sess.Identity = ident

	g.sessions.Set(&sess, &ident)

	log.Debug().Str("user_id", ident.ID).Msg("profile updated")

	return nil
}

// handleAuthEvent is the single consumer of the provider's auth-state
// stream. SignedIn and TokenRefreshed populate the session store from the
// event's session; SignedOut clears it and emits the landing redirect.
func (g *Gateway) handleAuthEvent(ev provider.AuthEvent) {
	switch ev.Kind {
	case provider.AuthSignedIn, provider.AuthTokenRefreshed:
		if ev.Session == nil {
			log.Warn().Str("kind", string(ev.Kind)).Msg("auth event missing session, ignored")
			return
		}
		ident := ev.Session.Identity
		g.sessions.Set(ev.Session, &ident)

	case provider.AuthSignedOut:
		g.sessions.Clear()
		select {
		case g.redirects <- LandingRoute:
		default:
			log.Warn().Msg("redirect channel full, navigation request dropped")
		}

	default:
		log.Debug().Str("kind", string(ev.Kind)).Msg("ignoring auth event")
	}
}
