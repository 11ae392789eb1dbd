package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
	"github.com/wolfeidau/pricescout/internal/session"
)

// fakeAuthProvider records calls and lets tests emit auth events
// synchronously, so the two phases of login/logout can be asserted
// separately.
type fakeAuthProvider struct {
	signUpResult *provider.SignUpResult
	signUpErr    error
	signInErr    error
	signOutErr   error
	updateErr    error

	signUpCalls  []provider.SignUpParams
	signInCalls  int
	signOutCalls int
	updateCalls  []models.MetadataPatch

	listener func(provider.AuthEvent)
}

func (f *fakeAuthProvider) SignUp(ctx context.Context, params provider.SignUpParams) (*provider.SignUpResult, error) {
	f.signUpCalls = append(f.signUpCalls, params)
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return f.signUpResult, nil
}

func (f *fakeAuthProvider) SignInWithPassword(ctx context.Context, email, password string) error {
	f.signInCalls++
	return f.signInErr
}

func (f *fakeAuthProvider) SignOut(ctx context.Context) error {
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeAuthProvider) UpdateUser(ctx context.Context, patch models.MetadataPatch) error {
	f.updateCalls = append(f.updateCalls, patch)
	return f.updateErr
}

func (f *fakeAuthProvider) GetSession(ctx context.Context) (*models.Session, error) {
	return nil, nil
}

func (f *fakeAuthProvider) OnAuthStateChange(fn func(provider.AuthEvent)) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func (f *fakeAuthProvider) emit(kind provider.AuthEventKind, sess *models.Session) {
	if f.listener != nil {
		f.listener(provider.AuthEvent{Kind: kind, Session: sess})
	}
}

func sessionFor(email string) *models.Session {
	return &models.Session{
		AccessToken: "access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity: models.Identity{
			ID:    "user-1",
			Email: email,
			Metadata: models.Metadata{
				FirstName: "Ada",
				LastName:  "Lovelace",
			},
		},
	}
}

func newTestGateway(fake *fakeAuthProvider) (*Gateway, *session.Store) {
	sessions := session.NewStore()
	return NewGateway(fake, sessions), sessions
}

func TestGatewayLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("short password rejected before any network call", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Login(ctx, "a@b.com", "short")
		require.ErrorIs(t, err, ErrValidation)
		require.Zero(t, fake.signInCalls)
	})

	t.Run("malformed email rejected locally", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Login(ctx, "not-an-email", "password1")
		require.ErrorIs(t, err, ErrValidation)
		require.Zero(t, fake.signInCalls)
	})

	t.Run("provider rejection maps to invalid credentials", func(t *testing.T) {
		fake := &fakeAuthProvider{signInErr: provider.ErrInvalidCredentials}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Login(ctx, "a@b.com", "password1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("transport failure maps to network error", func(t *testing.T) {
		fake := &fakeAuthProvider{signInErr: provider.ErrUnavailable}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Login(ctx, "a@b.com", "password1")
		require.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("login completes in two phases", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		// Phase one: request accepted, session not yet populated.
		require.NoError(t, g.Login(ctx, "a@b.com", "password1"))
		require.False(t, sessions.Get().LoggedIn())

		// Phase two: the SignedIn event establishes the session.
		fake.emit(provider.AuthSignedIn, sessionFor("a@b.com"))

		state := sessions.Get()
		require.True(t, state.LoggedIn())
		require.Equal(t, "a@b.com", state.Identity.Email)
	})
}

func TestGatewaySignup(t *testing.T) {
	ctx := context.Background()

	t.Run("empty first name rejected", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Signup(ctx, "", "Lovelace", "a@b.com", "password1")
		require.ErrorIs(t, err, ErrValidation)
		require.Empty(t, fake.signUpCalls)
	})

	t.Run("empty last name rejected", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Signup(ctx, "Ada", "  ", "a@b.com", "password1")
		require.ErrorIs(t, err, ErrValidation)
		require.Empty(t, fake.signUpCalls)
	})

	t.Run("duplicate reported as error", func(t *testing.T) {
		fake := &fakeAuthProvider{signUpErr: provider.ErrDuplicateAccount}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Signup(ctx, "Ada", "Lovelace", "a@b.com", "password1")
		require.ErrorIs(t, err, ErrDuplicateAccount)
	})

	t.Run("duplicate reported as empty identity", func(t *testing.T) {
		fake := &fakeAuthProvider{signUpResult: &provider.SignUpResult{}}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Signup(ctx, "Ada", "Lovelace", "a@b.com", "password1")
		require.ErrorIs(t, err, ErrDuplicateAccount)
		require.Zero(t, fake.signInCalls)
	})

	t.Run("verification gate skips implicit login", func(t *testing.T) {
		fake := &fakeAuthProvider{signUpResult: &provider.SignUpResult{
			Identity:             &models.Identity{ID: "user-1", Email: "a@b.com"},
			RequiresVerification: true,
		}}
		g, _ := newTestGateway(fake)
		defer g.Close()

		err := g.Signup(ctx, "Ada", "Lovelace", "a@b.com", "password1")
		require.ErrorIs(t, err, ErrPendingVerification)
		require.Zero(t, fake.signInCalls)
	})

	t.Run("successful signup performs implicit login", func(t *testing.T) {
		fake := &fakeAuthProvider{signUpResult: &provider.SignUpResult{
			Identity: &models.Identity{ID: "user-1", Email: "a@b.com"},
		}}
		g, _ := newTestGateway(fake)
		defer g.Close()

		require.NoError(t, g.Signup(ctx, "Ada", "Lovelace", "a@b.com", "password1"))
		require.Equal(t, 1, fake.signInCalls)

		require.Len(t, fake.signUpCalls, 1)
		require.Equal(t, "Ada", fake.signUpCalls[0].Metadata.FirstName)
		require.Equal(t, "Lovelace", fake.signUpCalls[0].Metadata.LastName)
	})
}

func TestGatewayLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("logout while signed out is a no-op", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		require.NoError(t, g.Logout(ctx))
		require.Zero(t, fake.signOutCalls)
		require.False(t, sessions.Get().LoggedIn())
	})

	t.Run("store cleared only when signed-out event arrives", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		fake.emit(provider.AuthSignedIn, sessionFor("a@b.com"))
		require.True(t, sessions.Get().LoggedIn())

		require.NoError(t, g.Logout(ctx))
		require.Equal(t, 1, fake.signOutCalls)
		require.True(t, sessions.Get().LoggedIn(), "session must survive until the event lands")

		fake.emit(provider.AuthSignedOut, nil)
		require.False(t, sessions.Get().LoggedIn())

		select {
		case route := <-g.Redirects():
			require.Equal(t, LandingRoute, route)
		default:
			t.Fatal("expected a redirect to the landing route")
		}
	})
}

func TestGatewayUpdateProfile(t *testing.T) {
	ctx := context.Background()

	first := func(s string) *string { return &s }

	t.Run("no session is a silent success", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		err := g.UpdateProfile(ctx, models.MetadataPatch{FirstName: first("X")})
		require.NoError(t, err)
		require.Empty(t, fake.updateCalls)
		require.Nil(t, sessions.Get().Identity)
	})

	t.Run("merges patch optimistically after remote write", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		fake.emit(provider.AuthSignedIn, sessionFor("a@b.com"))

		err := g.UpdateProfile(ctx, models.MetadataPatch{FirstName: first("Grace")})
		require.NoError(t, err)
		require.Len(t, fake.updateCalls, 1)

		ident := sessions.Get().Identity
		require.Equal(t, "Grace", ident.Metadata.FirstName)
		require.Equal(t, "Lovelace", ident.Metadata.LastName, "unpatched fields unchanged")
	})

	t.Run("remote failure is never swallowed", func(t *testing.T) {
		fake := &fakeAuthProvider{updateErr: provider.ErrUnavailable}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		fake.emit(provider.AuthSignedIn, sessionFor("a@b.com"))

		err := g.UpdateProfile(ctx, models.MetadataPatch{FirstName: first("Grace")})
		require.ErrorIs(t, err, ErrNetwork)
		require.Equal(t, "Ada", sessions.Get().Identity.Metadata.FirstName, "local copy untouched on failure")
	})
}

func TestGatewayAuthEvents(t *testing.T) {
	t.Run("token refresh replaces the session", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)
		defer g.Close()

		fake.emit(provider.AuthSignedIn, sessionFor("a@b.com"))
		before := sessions.Get().Session.AccessToken

		refreshed := sessionFor("a@b.com")
		refreshed.AccessToken = "rotated-token"
		fake.emit(provider.AuthTokenRefreshed, refreshed)

		after := sessions.Get().Session.AccessToken
		require.NotEqual(t, before, after)
		require.Equal(t, "rotated-token", after)
	})

	t.Run("close releases the subscription exactly once", func(t *testing.T) {
		fake := &fakeAuthProvider{}
		g, sessions := newTestGateway(fake)

		g.Close()
		g.Close()

		fake.emit(provider.AuthSignedIn, sessionFor("a@b.com"))
		require.False(t, sessions.Get().LoggedIn())
	})
}
