// Package realtime bridges a one-time catalog snapshot with the provider's
// change feed, maintaining continuously consistent in-memory product and
// offer collections for a single scope (one product, or all products).
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/catalog"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
	"github.com/wolfeidau/pricescout/internal/telemetry"
)

// snapshotLimit caps the all-products snapshot read.
const snapshotLimit = 100

// Scope selects which rows a subscription session tracks. The zero value
// tracks all products.
type Scope struct {
	ProductID string
}

// All reports whether the scope covers the whole catalog.
func (s Scope) All() bool {
	return s.ProductID == ""
}

// State is the subscription session state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSynced
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLoading:
		return "LOADING"
	case StateSynced:
		return "SYNCED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Controller owns one change feed subscription at a time and merges its
// events into local collections seeded from a catalog snapshot.
//
// Events are applied strictly in arrival order per table; events that land
// while the snapshot is still loading are queued and replayed after seeding.
// Each SetScope bumps a generation counter, and results belonging to a
// superseded generation are discarded rather than applied, so a scope change
// logically cancels an in-flight snapshot even though the underlying request
// is not aborted.
type Controller struct {
	catalog *catalog.Client
	feed    provider.Changefeed

	mu         sync.Mutex
	gen        uint64
	state      State
	scope      Scope
	products   []models.Product
	offers     []models.Offer
	pending    []provider.ChangeEvent
	cancelFeed func()
}

// NewController creates an idle controller. Call SetScope to start syncing.
func NewController(catalogClient *catalog.Client, feed provider.Changefeed) *Controller {
	return &Controller{
		catalog: catalogClient,
		feed:    feed,
		state:   StateIdle,
	}
}

// SetScope discards the local collections, opens a change feed subscription
// for the new scope and issues a fresh snapshot read. Calling it again
// before the previous snapshot resolves supersedes that snapshot entirely.
func (c *Controller) SetScope(ctx context.Context, scope Scope) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.scope = scope
	c.state = StateLoading
	c.products = nil
	c.offers = nil
	c.pending = nil
	prevCancel := c.cancelFeed
	c.cancelFeed = nil
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	events, cancel, err := c.feed.Subscribe(ctx, provider.ChangeSubscription{ProductID: scope.ProductID})
	if err != nil {
		c.mu.Lock()
		if gen == c.gen {
			c.state = StateError
		}
		c.mu.Unlock()
		return fmt.Errorf("failed to open change feed: %w", err)
	}

	cancel = releaseOnce(cancel)

	c.mu.Lock()
	if gen != c.gen {
		// Superseded while subscribing.
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.cancelFeed = cancel
	c.mu.Unlock()

	go c.pump(gen, events)
	go c.loadSnapshot(ctx, gen, scope)

	log.Debug().Str("product_id", scope.ProductID).Uint64("generation", gen).Msg("sync session started")

	return nil
}

// Stop tears the session down: the feed subscription is released exactly
// once and any in-flight snapshot is invalidated. Safe to call if the
// subscription never opened, and safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	c.state = StateIdle
	c.products = nil
	c.offers = nil
	c.pending = nil
	cancel := c.cancelFeed
	c.cancelFeed = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Loading reports whether the snapshot for the current scope is still in
// flight.
func (c *Controller) Loading() bool {
	return c.State() == StateLoading
}

// Products returns a copy of the local product collection.
func (c *Controller) Products() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Product returns the tracked product with the given id, or nil.
func (c *Controller) Product(id string) *models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID == id {
			p := c.products[i]
			return &p
		}
	}
	return nil
}

// Offers returns a copy of the local offer collection.
func (c *Controller) Offers() []models.Offer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Offer, len(c.offers))
	copy(out, c.offers)
	return out
}

// StoresFor returns the offers for one product. The offer collection is
// filtered on every call; per-view collections are small enough that a
// maintained index is not worth the bookkeeping.
func (c *Controller) StoresFor(productID string) []models.Offer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Offer
	for _, offer := range c.offers {
		if offer.ProductID == productID {
			out = append(out, offer)
		}
	}
	return out
}

// loadSnapshot performs the snapshot read for one generation and seeds the
// collections, replaying any events queued while loading. A degraded
// (empty) read still counts as arrived.
func (c *Controller) loadSnapshot(ctx context.Context, gen uint64, scope Scope) {
	m := telemetry.GetMetrics()
	started := time.Now()

	var products []models.Product
	var offers []models.Offer

	if scope.All() {
		products = c.catalog.ListProducts(ctx, catalog.Filter{Limit: snapshotLimit})
		ids := make([]string, 0, len(products))
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		offers = c.catalog.ListStoresForProducts(ctx, ids)
	} else {
		if p := c.catalog.GetProduct(ctx, scope.ProductID); p != nil {
			products = []models.Product{*p}
		}
		offers = c.catalog.ListStores(ctx, scope.ProductID)
	}

	m.SnapshotLoadsTotal.Add(ctx, 1)
	m.SnapshotLoadDuration.Record(ctx, float64(time.Since(started).Milliseconds()))

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// The scope changed while this snapshot was in flight; applying it
		// now would corrupt the newer generation's state.
		m.SnapshotsDiscardedTotal.Add(ctx, 1)
		log.Debug().Uint64("generation", gen).Msg("discarding stale snapshot")
		return
	}

	c.products = products
	c.offers = offers
	c.state = StateSynced

	queued := c.pending
	c.pending = nil
	for _, ev := range queued {
		c.applyLocked(ev)
	}

	log.Debug().
		Int("products", len(products)).
		Int("offers", len(offers)).
		Int("replayed", len(queued)).
		Msg("sync session seeded")
}

// pump consumes one subscription's event channel until it closes.
func (c *Controller) pump(gen uint64, events <-chan provider.ChangeEvent) {
	for ev := range events {
		c.dispatch(gen, ev)
	}
}

func (c *Controller) dispatch(gen uint64, ev provider.ChangeEvent) {
	m := telemetry.GetMetrics()
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		m.ChangeEventsDroppedTotal.Add(ctx, 1)
		return
	}

	switch c.state {
	case StateLoading:
		c.pending = append(c.pending, ev)
		m.ChangeEventsQueuedTotal.Add(ctx, 1)
	case StateSynced:
		c.applyLocked(ev)
	default:
		m.ChangeEventsDroppedTotal.Add(ctx, 1)
	}
}

// applyLocked merges one change event into the local collections. Events
// with rows that fail to decode are dropped with a logged diagnostic.
func (c *Controller) applyLocked(ev provider.ChangeEvent) {
	m := telemetry.GetMetrics()
	ctx := context.Background()

	switch ev.Table {
	case provider.TableProducts:
		var newRow, oldRow models.Product
		if !decodeRows(ev, &newRow, &oldRow) {
			m.ChangeEventsDroppedTotal.Add(ctx, 1)
			return
		}
		c.products = merge(c.products, ev.Type, newRow, oldRow, func(p models.Product) string { return p.ID })

	case provider.TableOffers:
		var newRow, oldRow models.Offer
		if !decodeRows(ev, &newRow, &oldRow) {
			m.ChangeEventsDroppedTotal.Add(ctx, 1)
			return
		}
		c.offers = merge(c.offers, ev.Type, newRow, oldRow, func(o models.Offer) string { return o.ID })

	default:
		m.ChangeEventsDroppedTotal.Add(ctx, 1)
		return
	}

	m.ChangeEventsAppliedTotal.Add(ctx, 1)
}

// decodeRows unpacks the event's row payloads. Inserts and updates require
// a new row; updates and deletes decode the old row when present.
func decodeRows[T any](ev provider.ChangeEvent, newRow, oldRow *T) bool {
	if ev.Type == provider.ChangeInsert || ev.Type == provider.ChangeUpdate {
		if len(ev.New) == 0 {
			log.Warn().Str("table", ev.Table).Str("type", string(ev.Type)).Msg("change event missing new row")
			return false
		}
		if err := json.Unmarshal(ev.New, newRow); err != nil {
			log.Warn().Err(err).Str("table", ev.Table).Msg("failed to decode new row")
			return false
		}
	}

	if ev.Type == provider.ChangeDelete {
		if len(ev.Old) == 0 {
			log.Warn().Str("table", ev.Table).Msg("delete event missing old row")
			return false
		}
		if err := json.Unmarshal(ev.Old, oldRow); err != nil {
			log.Warn().Err(err).Str("table", ev.Table).Msg("failed to decode old row")
			return false
		}
	} else if len(ev.Old) > 0 {
		if err := json.Unmarshal(ev.Old, oldRow); err != nil {
			log.Warn().Err(err).Str("table", ev.Table).Msg("failed to decode old row")
			return false
		}
	}

	return true
}

// releaseOnce wraps a subscription cancel so repeated teardown paths only
// release it a single time, and keeps the active-subscription gauge honest.
func releaseOnce(cancel func()) func() {
	var once sync.Once
	m := telemetry.GetMetrics()
	m.ActiveSubscriptions.Add(context.Background(), 1)
	return func() {
		once.Do(func() {
			cancel()
			m.ActiveSubscriptions.Add(context.Background(), -1)
		})
	}
}
