// Package sessioncache persists the signed-in session between CLI
// invocations. Only the refresh token is trusted on load; the access token
// is reissued by the provider when the session is restored.
package sessioncache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/models"
)

// ErrNoSession is returned when no session has been cached.
var ErrNoSession = errors.New("no cached session")

const sessionFile = "session.json"

// Cache stores the session on the local filesystem.
type Cache struct {
	baseDir string
}

// New creates a session cache. If baseDir is empty, ~/.pricescout/ is used.
func New(baseDir string) (*Cache, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".pricescout")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{baseDir: baseDir}, nil
}

// Save writes the session atomically with 0600 permissions.
func (c *Cache) Save(sess *models.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := filepath.Join(c.baseDir, sessionFile)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session: %w", err)
	}

	log.Debug().Str("path", path).Msg("session cached")

	return nil
}

// Load reads the cached session. Returns ErrNoSession when none exists.
func (c *Cache) Load() (*models.Session, error) {
	data, err := os.ReadFile(filepath.Join(c.baseDir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	return &sess, nil
}

// Clear removes the cached session. Clearing an empty cache is a no-op.
func (c *Cache) Clear() error {
	err := os.Remove(filepath.Join(c.baseDir, sessionFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
