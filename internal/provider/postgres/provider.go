// Package postgres is the PostgreSQL-backed Provider implementation. Catalog
// rows live in ordinary tables, the change feed rides on LISTEN/NOTIFY
// triggers, and sessions are persisted so refresh tokens survive restarts.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

var _ provider.Provider = (*Provider)(nil)

type authListener struct {
	id int
	fn func(provider.AuthEvent)
}

// Provider is the PostgreSQL-backed backend.
type Provider struct {
	cfg  *Config
	pool *pgxpool.Pool

	mu           sync.Mutex
	closed       bool
	session      *models.Session
	listeners    []authListener
	nextListener int
	feedSubs     []*feedSub

	cancelListen context.CancelFunc
	listenDone   chan struct{}
}

// New connects to the database, optionally runs migrations, and starts the
// change feed listener.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	p := &Provider{
		cfg:        cfg,
		pool:       pool,
		listenDone: make(chan struct{}),
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	p.cancelListen = cancel
	go p.listenLoop(listenCtx)

	return p, nil
}

// Close stops the change feed listener, releases all subscriptions and
// closes the connection pool. Safe to call more than once.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.listeners = nil
	subs := p.feedSubs
	p.feedSubs = nil
	p.mu.Unlock()

	p.cancelListen()
	<-p.listenDone

	for _, s := range subs {
		s.close()
	}

	p.pool.Close()
}
