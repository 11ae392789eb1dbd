package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
	"golang.org/x/crypto/bcrypt"
)

// SignUp creates an account row. A duplicate email surfaces as
// ErrDuplicateAccount via the users_email_key constraint.
func (p *Provider) SignUp(ctx context.Context, params provider.SignUpParams) (*provider.SignUpResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, profile_image, verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id string
	err = p.pool.QueryRow(ctx, query,
		normalizeEmail(params.Email),
		string(hash),
		params.Metadata.FirstName,
		params.Metadata.LastName,
		params.Metadata.ProfileImage,
		!p.cfg.RequireVerification,
	).Scan(&id)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	log.Debug().Str("user_id", id).Msg("created account")

	return &provider.SignUpResult{
		Identity: &models.Identity{
			ID:       id,
			Email:    normalizeEmail(params.Email),
			Metadata: params.Metadata,
		},
		RequiresVerification: p.cfg.RequireVerification,
	}, nil
}

// SignInWithPassword validates credentials and establishes a session. The
// refresh token is persisted so it survives process restarts; the session
// itself is delivered on the auth-state event stream.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) error {
	query := `
		SELECT id, email, password_hash, first_name, last_name, profile_image, verified
		FROM users
		WHERE email = $1
	`

	var (
		identity models.Identity
		hash     string
		verified bool
	)
	err := p.pool.QueryRow(ctx, query, normalizeEmail(email)).Scan(
		&identity.ID,
		&identity.Email,
		&hash,
		&identity.Metadata.FirstName,
		&identity.Metadata.LastName,
		&identity.Metadata.ProfileImage,
		&verified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provider.ErrInvalidCredentials
		}
		return mapPostgresError(err)
	}

	if !verified {
		return provider.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return provider.ErrInvalidCredentials
	}

	sess, err := p.createSession(ctx, identity)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()

	p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthSignedIn, Session: copySession(sess)})

	return nil
}

// SignOut deletes the persisted session row and clears the active session.
// Signing out without a session is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.session
	p.session = nil
	p.mu.Unlock()

	if sess == nil {
		return nil
	}

	if _, err := p.pool.Exec(ctx,
		`DELETE FROM sessions WHERE refresh_token = $1`, sess.RefreshToken); err != nil {
		log.Warn().Err(err).Msg("failed to delete session row")
	}

	p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthSignedOut})

	return nil
}

// UpdateUser applies a metadata patch to the signed-in account and the
// active session's identity.
func (p *Provider) UpdateUser(ctx context.Context, patch models.MetadataPatch) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()

	if sess == nil {
		return provider.ErrSessionRequired
	}

	query := `
		UPDATE users
		SET first_name    = COALESCE($2, first_name),
		    last_name     = COALESCE($3, last_name),
		    profile_image = COALESCE($4, profile_image)
		WHERE id = $1
		RETURNING first_name, last_name, profile_image
	`

	var metadata models.Metadata
	err := p.pool.QueryRow(ctx, query,
		sess.Identity.ID,
		patch.FirstName,
		patch.LastName,
		patch.ProfileImage,
	).Scan(&metadata.FirstName, &metadata.LastName, &metadata.ProfileImage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provider.ErrSessionRequired
		}
		return mapPostgresError(err)
	}

	p.mu.Lock()
	if p.session != nil && p.session.Identity.ID == sess.Identity.ID {
		p.session.Identity.Metadata = metadata
	}
	p.mu.Unlock()

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

// Verify marks an account as verified so it can sign in.
func (p *Provider) Verify(ctx context.Context, email string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET verified = TRUE WHERE email = $1`, normalizeEmail(email))
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return provider.ErrNotFound
	}
	return nil
}

// RefreshSession rotates the active session's tokens. The old refresh token
// row is replaced and the new session is delivered on the auth-state event
// stream.
func (p *Provider) RefreshSession(ctx context.Context) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()

	if sess == nil {
		return provider.ErrSessionRequired
	}

	if _, err := p.pool.Exec(ctx,
		`DELETE FROM sessions WHERE refresh_token = $1`, sess.RefreshToken); err != nil {
		return mapPostgresError(err)
	}

	next, err := p.createSession(ctx, sess.Identity)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.session = next
	p.mu.Unlock()

	p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthTokenRefreshed, Session: copySession(next)})

	return nil
}

// RestoreSession re-establishes a session from a persisted refresh token,
// rotating it in the process. An unknown or expired token surfaces as
// ErrSessionRequired so callers fall back to a fresh sign-in.
func (p *Provider) RestoreSession(ctx context.Context, refreshToken string) error {
	query := `
		SELECT u.id, u.email, u.first_name, u.last_name, u.profile_image
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.refresh_token = $1 AND s.expires_at > now()
	`

	var identity models.Identity
	err := p.pool.QueryRow(ctx, query, refreshToken).Scan(
		&identity.ID,
		&identity.Email,
		&identity.Metadata.FirstName,
		&identity.Metadata.LastName,
		&identity.Metadata.ProfileImage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return provider.ErrSessionRequired
		}
		return mapPostgresError(err)
	}

	if _, err := p.pool.Exec(ctx,
		`DELETE FROM sessions WHERE refresh_token = $1`, refreshToken); err != nil {
		return mapPostgresError(err)
	}

	sess, err := p.createSession(ctx, identity)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()

	p.emitAuthEvent(provider.AuthEvent{Kind: provider.AuthSignedIn, Session: copySession(sess)})

	return nil
}

// createSession persists a new refresh token row and issues an access token.
func (p *Provider) createSession(ctx context.Context, identity models.Identity) (*models.Session, error) {
	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}

	access, err := p.issueAccessToken(identity.ID, p.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	expiresAt := time.Now().Add(p.cfg.SessionTTL)

	_, err = p.pool.Exec(ctx,
		`INSERT INTO sessions (refresh_token, user_id, expires_at) VALUES ($1, $2, $3)`,
		refresh, identity.ID, expiresAt)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Identity:     identity,
	}, nil
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

func copySession(s *models.Session) *models.Session {
	out := *s
	return &out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
