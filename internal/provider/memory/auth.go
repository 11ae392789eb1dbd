package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
	"golang.org/x/crypto/bcrypt"
)

// SignUp creates an account. A sign-up against an existing email creates
// nothing and reports a result with no identity, the same obfuscated shape
// the remote backend uses for duplicates.
func (p *Provider) SignUp(ctx context.Context, params provider.SignUpParams) (*provider.SignUpResult, error) {
	email := normalizeEmail(params.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.users[email]; exists {
		return &provider.SignUpResult{}, nil
	}

	u := &user{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: hash,
		metadata:     params.Metadata,
		verified:     !p.cfg.RequireVerification,
	}
	p.users[email] = u

	return &provider.SignUpResult{
		Identity:             identityOf(u),
		RequiresVerification: p.cfg.RequireVerification,
	}, nil
}

// SignInWithPassword validates credentials and, on success, establishes a
// session delivered via the auth-state event stream. Unverified accounts are
// rejected the same way as a bad password.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) error {
	p.mu.Lock()

	u, exists := p.users[normalizeEmail(email)]
	if !exists || !u.verified {
		p.mu.Unlock()
		return provider.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		p.mu.Unlock()
		return provider.ErrInvalidCredentials
	}

	sess := p.newSessionLocked(u)
	p.session = sess
	p.mu.Unlock()

	p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthSignedIn, Session: copySession(sess)})

	return nil
}

// SignOut clears the active session. Signing out without a session is a
// no-op and emits nothing.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.session != nil
	p.session = nil
	p.mu.Unlock()

	if had {
		p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthSignedOut})
	}

	return nil
}

// UpdateUser applies a metadata patch to the signed-in account and the
// active session's identity.
func (p *Provider) UpdateUser(ctx context.Context, patch models.MetadataPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return provider.ErrSessionRequired
	}

	u, exists := p.users[normalizeEmail(p.session.Identity.Email)]
	if !exists {
		return provider.ErrSessionRequired
	}

	u.metadata = patch.Apply(u.metadata)
	p.session.Identity.Metadata = u.metadata

	return nil
}

// GetSession returns a copy of the active session, or (nil, nil) when
// signed out.
func (p *Provider) GetSession(ctx context.Context) (*models.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil, nil
	}
	return copySession(p.session), nil
}

// OnAuthStateChange registers an auth-state listener. Listeners fire in
// registration order; the returned unsubscribe is idempotent.
func (p *Provider) OnAuthStateChange(fn func(provider.AuthEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextListener++
	id := p.nextListener
	p.listeners = append(p.listeners, authListener{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Verify marks an account as verified so it can sign in. Returns
// ErrNotFound for an unknown email.
func (p *Provider) Verify(email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, exists := p.users[normalizeEmail(email)]
	if !exists {
		return provider.ErrNotFound
	}
	u.verified = true

	return nil
}

// RefreshSession rotates the active session's tokens and extends its expiry,
// simulating the background token refresh the remote backend performs. The
// new session is delivered via the auth-state event stream.
func (p *Provider) RefreshSession(ctx context.Context) error {
	p.mu.Lock()

	if p.session == nil {
		p.mu.Unlock()
		return provider.ErrSessionRequired
	}

	u, exists := p.users[normalizeEmail(p.session.Identity.Email)]
	if !exists {
		p.mu.Unlock()
		return provider.ErrSessionRequired
	}

	sess := p.newSessionLocked(u)
	p.session = sess
	p.mu.Unlock()

	p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthTokenRefreshed, Session: copySession(sess)})

	return nil
}

func (p *Provider) newSessionLocked(u *user) *models.Session {
	return &models.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(p.cfg.SessionTTL),
		Identity:     *identityOf(u),
	}
}

// emitAuthEvent invokes listeners over a snapshot taken outside the lock so
// a listener can subscribe or unsubscribe without deadlocking.
func (p *Provider) emitAuthEvent(ev provider.AuthEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	snapshot := make([]authListener, len(p.listeners))
	copy(snapshot, p.listeners)
	p.mu.Unlock()

	for _, l := range snapshot {
		l.fn(ev)
	}
}

func identityOf(u *user) *models.Identity {
	return &models.Identity{
		ID:       u.id,
		Email:    u.email,
		Metadata: u.metadata,
	}
}

func copySession(s *models.Session) *models.Session {
	out := *s
	return &out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
