package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/provider"
	"github.com/wolfeidau/pricescout/internal/telemetry"
)

// notifyChannel is the pg_notify channel written by the change feed
// triggers.
const notifyChannel = "pricescout_changes"

// feedBuffer is the per-subscriber event buffer. A subscriber that falls
// this far behind starts losing events rather than blocking the listener.
const feedBuffer = 64

type feedSub struct {
	sub  provider.ChangeSubscription
	ch   chan provider.ChangeEvent
	once sync.Once
}

func (s *feedSub) close() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// Subscribe opens a change feed subscription. Events are delivered in
// notification order; the cancel function closes the channel and is
// idempotent.
func (p *Provider) Subscribe(ctx context.Context, sub provider.ChangeSubscription) (<-chan provider.ChangeEvent, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, errors.New("provider closed")
	}

	s := &feedSub{
		sub: sub,
		ch:  make(chan provider.ChangeEvent, feedBuffer),
	}
	p.feedSubs = append(p.feedSubs, s)

	// Closing under the lock keeps deliver from racing a send against the
	// close.
	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, existing := range p.feedSubs {
			if existing == s {
				p.feedSubs = append(p.feedSubs[:i], p.feedSubs[i+1:]...)
				break
			}
		}
		s.close()
	}

	return s.ch, cancel, nil
}

// listenLoop holds a dedicated LISTEN connection open, reconnecting with
// exponential backoff. Notifications raised while disconnected are lost;
// consumers recover by reissuing their snapshot.
func (p *Provider) listenLoop(ctx context.Context) {
	defer close(p.listenDone)

	bo := backoff.NewExponentialBackOff()

	for {
		if ctx.Err() != nil {
			return
		}

		err := p.listenOnce(ctx, bo)
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		log.Warn().Err(err).Dur("retry_in", wait).Msg("change feed connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// listenOnce opens one LISTEN connection and delivers notifications until
// the connection fails or the context is canceled.
func (p *Provider) listenOnce(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	conn, err := pgx.Connect(ctx, p.cfg.ConnString)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	bo.Reset()
	log.Debug().Str("channel", notifyChannel).Msg("change feed listening")

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.deliver(notification.Payload)
	}
}

// deliver decodes one notification payload and fans it out to matching
// subscribers. Sends never block; a full subscriber buffer drops the event
// with a logged warning.
func (p *Provider) deliver(payload string) {
	var ev provider.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Warn().Err(err).Msg("failed to decode change notification")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for _, s := range p.feedSubs {
		if !s.sub.Matches(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			telemetry.GetMetrics().ChannelOverflowTotal.Add(context.Background(), 1)
			log.Warn().
				Str("table", ev.Table).
				Str("type", string(ev.Type)).
				Msg("change feed subscriber buffer full, dropping event")
		}
	}
}
