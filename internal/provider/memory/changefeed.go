package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/provider"
	"github.com/wolfeidau/pricescout/internal/telemetry"
)

// feedBuffer is the per-subscriber event buffer. A subscriber that falls
// this far behind starts losing events rather than blocking publishers.
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
// publish order; the cancel function closes the channel and is idempotent.
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

	// Closing under the lock keeps publish from racing a send against the
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

// publish fans an event out to every matching subscriber. Sends never block;
// a full subscriber buffer drops the event with a logged warning.
func (p *Provider) publish(ev provider.ChangeEvent) {
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

func mustRow(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Catalog models are plain structs; marshalling cannot fail.
		panic(err)
	}
	return data
}
