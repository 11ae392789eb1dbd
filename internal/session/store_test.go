package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

func testSession(email string) *models.Session {
	return &models.Session{
		AccessToken: "token-" + email,
		ExpiresAt:   time.Now().Add(time.Hour),
		Identity: models.Identity{
			ID:    "user-1",
			Email: email,
		},
	}
}

func TestStoreSet(t *testing.T) {
	t.Run("session and identity are paired", func(t *testing.T) {
		st := NewStore()
		require.False(t, st.Get().LoggedIn())

		sess := testSession("a@b.com")
		st.Set(sess, &sess.Identity)

		state := st.Get()
		require.True(t, state.LoggedIn())
		require.NotNil(t, state.Identity)
		require.Equal(t, "a@b.com", state.Identity.Email)
	})

	t.Run("nil session clears identity", func(t *testing.T) {
		st := NewStore()
		sess := testSession("a@b.com")
		st.Set(sess, &sess.Identity)

		st.Set(nil, &sess.Identity)

		state := st.Get()
		require.False(t, state.LoggedIn())
		require.Nil(t, state.Identity)
	})

	t.Run("nil identity clears session", func(t *testing.T) {
		st := NewStore()
		sess := testSession("a@b.com")
		st.Set(sess, nil)

		require.False(t, st.Get().LoggedIn())
	})
}

func TestStoreSubscribe(t *testing.T) {
	t.Run("subscribers notified in registration order", func(t *testing.T) {
		st := NewStore()

		var order []string
		st.Subscribe(func(State) { order = append(order, "first") })
		st.Subscribe(func(State) { order = append(order, "second") })

		sess := testSession("a@b.com")
		st.Set(sess, &sess.Identity)

		require.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("unsubscribe stops notifications", func(t *testing.T) {
		st := NewStore()

		count := 0
		cancel := st.Subscribe(func(State) { count++ })

		st.Clear()
		cancel()
		st.Clear()

		require.Equal(t, 1, count)

		// Double unsubscribe is a no-op.
		cancel()
	})

	t.Run("subscribe during notification is safe", func(t *testing.T) {
		st := NewStore()

		lateCalls := 0
		st.Subscribe(func(State) {
			st.Subscribe(func(State) { lateCalls++ })
		})

		st.Clear()
		require.Equal(t, 0, lateCalls, "listener added mid-pass must not fire in that pass")

		st.Clear()
		require.Equal(t, 1, lateCalls)
	})

	t.Run("unsubscribe during notification does not drop later listeners", func(t *testing.T) {
		st := NewStore()

		var cancelSecond func()
		secondCalls := 0
		thirdCalls := 0

		st.Subscribe(func(State) { cancelSecond() })
		cancelSecond = st.Subscribe(func(State) { secondCalls++ })
		st.Subscribe(func(State) { thirdCalls++ })

		st.Clear()

		// The pass iterates a stable snapshot: the second listener still
		// fires once, and the third is not skipped.
		require.Equal(t, 1, secondCalls)
		require.Equal(t, 1, thirdCalls)

		st.Clear()
		require.Equal(t, 1, secondCalls)
		require.Equal(t, 2, thirdCalls)
	})
}

type bootstrapProvider struct {
	provider.AuthProvider

	session *models.Session
	err     error
}

func (b *bootstrapProvider) GetSession(ctx context.Context) (*models.Session, error) {
	return b.session, b.err
}

func TestStoreBootstrap(t *testing.T) {
	t.Run("restores server session", func(t *testing.T) {
		st := NewStore()
		sess := testSession("restore@example.com")

		err := st.Bootstrap(context.Background(), &bootstrapProvider{session: sess})
		require.NoError(t, err)

		state := st.Get()
		require.True(t, state.LoggedIn())
		require.Equal(t, "restore@example.com", state.Identity.Email)
	})

	t.Run("no session leaves store empty", func(t *testing.T) {
		st := NewStore()

		err := st.Bootstrap(context.Background(), &bootstrapProvider{})
		require.NoError(t, err)
		require.False(t, st.Get().LoggedIn())
	})

	t.Run("provider failure surfaces", func(t *testing.T) {
		st := NewStore()

		err := st.Bootstrap(context.Background(), &bootstrapProvider{err: errors.New("boom")})
		require.Error(t, err)
		require.False(t, st.Get().LoggedIn())
	})
}
