package postgres

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func TestIssueAccessToken(t *testing.T) {
	p := &Provider{cfg: &Config{
		TokenSigningSecret: []byte("test-secret-key-min-32-bytes-long"),
	}}

	t.Run("token carries subject issuer and expiry", func(t *testing.T) {
		token, err := p.issueAccessToken("user-1", time.Hour)
		require.NoError(t, err)

		parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
			require.Equal(t, jwt.SigningMethodHS256, tok.Method)
			return p.cfg.TokenSigningSecret, nil
		})
		require.NoError(t, err)
		require.True(t, parsed.Valid)

		claims := parsed.Claims.(*jwt.RegisteredClaims)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, tokenIssuer, claims.Issuer)
		require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
	})

	t.Run("wrong secret fails verification", func(t *testing.T) {
		token, err := p.issueAccessToken("user-1", time.Hour)
		require.NoError(t, err)

		_, err = jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
			return []byte("another-secret-also-32-bytes-long!"), nil
		})
		require.Error(t, err)
	})
}

func TestNewRefreshToken(t *testing.T) {
	t.Run("tokens are 32 random bytes base58 encoded", func(t *testing.T) {
		token, err := newRefreshToken()
		require.NoError(t, err)

		raw, err := base58.Decode(token)
		require.NoError(t, err)
		require.Len(t, raw, 32)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		a, err := newRefreshToken()
		require.NoError(t, err)
		b, err := newRefreshToken()
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("connection string required", func(t *testing.T) {
		cfg := &Config{TokenSigningSecret: []byte("test-secret-key-min-32-bytes-long")}
		require.Error(t, cfg.Validate())
	})

	t.Run("short signing secret rejected", func(t *testing.T) {
		cfg := &Config{ConnString: "postgres://localhost/db", TokenSigningSecret: []byte("short")}
		require.Error(t, cfg.Validate())
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		require.Equal(t, time.Hour, cfg.SessionTTL)
		require.Equal(t, int32(10), cfg.MaxConns)
	})
}
