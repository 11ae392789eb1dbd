// Package memory is an in-process Provider implementation for development
// and testing. It keeps users, sessions, catalog rows and wishlists in maps
// and delivers auth and row-change events the same way the remote backend
// does, so the layers above it behave identically against either.
package memory

import (
	"sync"
	"time"

	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

// DefaultSessionTTL is the access token lifetime used when Config.SessionTTL
// is unset.
const DefaultSessionTTL = time.Hour

// Config controls the in-memory provider's behavior.
type Config struct {
	// RequireVerification makes SignUp create unverified accounts that
	// cannot sign in until Verify is called, mirroring backends with email
	// confirmation enabled.
	RequireVerification bool

	// SessionTTL is the access token lifetime.
	SessionTTL time.Duration
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
}

// user is an account record. Accounts are keyed by lowercased email.
type user struct {
	id           string
	email        string
	passwordHash []byte
	metadata     models.Metadata
	verified     bool
}

type authListener struct {
	id int
	fn func(provider.AuthEvent)
}

var _ provider.Provider = (*Provider)(nil)

// Provider is the in-memory backend.
type Provider struct {
	cfg Config

	mu           sync.Mutex
	closed       bool
	users        map[string]*user
	session      *models.Session
	products     map[string]models.Product
	offers       map[string]models.Offer
	wishlists    map[string]map[string]struct{}
	listeners    []authListener
	nextListener int
	feedSubs     []*feedSub
}

// NewProvider creates an empty in-memory provider.
func NewProvider(cfg Config) *Provider {
	cfg.ApplyDefaults()
	return &Provider{
		cfg:       cfg,
		users:     make(map[string]*user),
		products:  make(map[string]models.Product),
		offers:    make(map[string]models.Offer),
		wishlists: make(map[string]map[string]struct{}),
	}
}

// Close releases all change feed subscriptions and drops auth listeners.
// Safe to call more than once.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := p.feedSubs
	p.feedSubs = nil
	p.listeners = nil
	p.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}
