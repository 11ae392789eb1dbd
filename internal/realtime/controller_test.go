package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pricescout/internal/catalog"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

type fakeSub struct {
	ch      chan provider.ChangeEvent
	sub     provider.ChangeSubscription
	cancels int
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(ctx context.Context, sub provider.ChangeSubscription) (<-chan provider.ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, nil, f.err
	}

	s := &fakeSub{ch: make(chan provider.ChangeEvent, 16), sub: sub}
	f.subs = append(f.subs, s)

	return s.ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		s.cancels++
		if s.cancels == 1 {
			close(s.ch)
		}
	}, nil
}

func (f *fakeFeed) last() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

// fakeSyncCatalog implements provider.Catalog with an optional gate on the
// point lookup so tests can hold a snapshot in flight.
type fakeSyncCatalog struct {
	products  []models.Product
	offers    []models.Offer
	getResult *models.Product
	blockGet  chan struct{}
}

func (f *fakeSyncCatalog) SelectProducts(ctx context.Context, q provider.ProductQuery) ([]models.Product, error) {
	return f.products, nil
}

func (f *fakeSyncCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if f.blockGet != nil {
		<-f.blockGet
	}
	if f.getResult == nil {
		return nil, provider.ErrNotFound
	}
	return f.getResult, nil
}

func (f *fakeSyncCatalog) SelectOffers(ctx context.Context, q provider.OfferQuery) ([]models.Offer, error) {
	return f.offers, nil
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func newSyncedController(t *testing.T, fakeCat *fakeSyncCatalog, feed *fakeFeed) *Controller {
	t.Helper()

	c := NewController(catalog.NewClient(fakeCat), feed)
	require.NoError(t, c.SetScope(context.Background(), Scope{}))
	t.Cleanup(c.Stop)

	require.Eventually(t, func() bool {
		return c.State() == StateSynced
	}, time.Second, 5*time.Millisecond)

	return c
}

func TestControllerSeedAndApply(t *testing.T) {
	t.Run("update replaces the seeded row", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{
			products: []models.Product{{ID: "1", Title: "Widget", Price: 100}},
		}, feed)

		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableProducts,
			Type:  provider.ChangeUpdate,
			New:   mustJSON(t, models.Product{ID: "1", Title: "Widget", Price: 90}),
		}

		require.Eventually(t, func() bool {
			p := c.Product("1")
			return p != nil && p.Price == 90
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("duplicate insert is idempotent", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{}, feed)

		row := mustJSON(t, models.Product{ID: "1", Title: "Widget", Price: 100})
		feed.last().ch <- provider.ChangeEvent{Table: provider.TableProducts, Type: provider.ChangeInsert, New: row}
		feed.last().ch <- provider.ChangeEvent{Table: provider.TableProducts, Type: provider.ChangeInsert, New: row}

		require.Eventually(t, func() bool {
			return len(c.Products()) == 1
		}, time.Second, 5*time.Millisecond)

		// Give the second event time to land; the collection must not grow.
		time.Sleep(50 * time.Millisecond)
		require.Len(t, c.Products(), 1)
	})

	t.Run("update for an unknown id behaves like an insert", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{}, feed)

		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableProducts,
			Type:  provider.ChangeUpdate,
			New:   mustJSON(t, models.Product{ID: "7", Title: "Healed", Price: 10}),
		}

		require.Eventually(t, func() bool {
			return c.Product("7") != nil
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("delete for an absent id leaves the collection unchanged", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{
			products: []models.Product{{ID: "1", Title: "Widget", Price: 100}},
		}, feed)

		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableProducts,
			Type:  provider.ChangeDelete,
			Old:   mustJSON(t, models.Product{ID: "2"}),
		}

		time.Sleep(50 * time.Millisecond)
		require.Len(t, c.Products(), 1)
	})

	t.Run("delete removes the matching row", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{
			products: []models.Product{{ID: "1"}, {ID: "2"}},
		}, feed)

		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableProducts,
			Type:  provider.ChangeDelete,
			Old:   mustJSON(t, models.Product{ID: "1"}),
		}

		require.Eventually(t, func() bool {
			return len(c.Products()) == 1 && c.Product("2") != nil
		}, time.Second, 5*time.Millisecond)
	})
}

func TestControllerOffers(t *testing.T) {
	t.Run("stores filtered per product on every call", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{
			products: []models.Product{{ID: "1"}, {ID: "2"}},
			offers: []models.Offer{
				{ID: "o1", ProductID: "1", StoreName: "acme", Price: 10},
				{ID: "o2", ProductID: "2", StoreName: "bmart", Price: 12},
			},
		}, feed)

		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableOffers,
			Type:  provider.ChangeInsert,
			New:   mustJSON(t, models.Offer{ID: "o3", ProductID: "1", StoreName: "ceeco", Price: 9}),
		}

		require.Eventually(t, func() bool {
			return len(c.Offers()) == 3
		}, time.Second, 5*time.Millisecond)

		stores := c.StoresFor("1")
		require.Len(t, stores, 2)
		for _, offer := range stores {
			require.Equal(t, "1", offer.ProductID)
		}
	})
}

func TestControllerQueueWhileLoading(t *testing.T) {
	t.Run("events before seeding are queued and replayed in order", func(t *testing.T) {
		fakeCat := &fakeSyncCatalog{
			blockGet:  make(chan struct{}),
			getResult: &models.Product{ID: "1", Title: "Widget", Price: 100},
		}
		feed := &fakeFeed{}
		c := NewController(catalog.NewClient(fakeCat), feed)
		defer c.Stop()

		require.NoError(t, c.SetScope(context.Background(), Scope{ProductID: "1"}))

		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableProducts,
			Type:  provider.ChangeUpdate,
			New:   mustJSON(t, models.Product{ID: "1", Title: "Widget", Price: 95}),
		}
		feed.last().ch <- provider.ChangeEvent{
			Table: provider.TableProducts,
			Type:  provider.ChangeUpdate,
			New:   mustJSON(t, models.Product{ID: "1", Title: "Widget", Price: 90}),
		}

		// Snapshot still in flight: nothing applied yet.
		time.Sleep(50 * time.Millisecond)
		require.True(t, c.Loading())
		require.Empty(t, c.Products())

		close(fakeCat.blockGet)

		require.Eventually(t, func() bool {
			p := c.Product("1")
			return c.State() == StateSynced && p != nil && p.Price == 90
		}, time.Second, 5*time.Millisecond)
	})
}

func TestControllerStaleScopeGuard(t *testing.T) {
	t.Run("superseded snapshot is never applied", func(t *testing.T) {
		fakeCat := &fakeSyncCatalog{
			blockGet:  make(chan struct{}),
			getResult: &models.Product{ID: "1", Title: "Stale", Price: 100},
			products:  []models.Product{{ID: "2", Title: "Fresh", Price: 50}},
		}
		feed := &fakeFeed{}
		c := NewController(catalog.NewClient(fakeCat), feed)
		defer c.Stop()

		// Scope A: single product, snapshot blocked in flight.
		require.NoError(t, c.SetScope(context.Background(), Scope{ProductID: "1"}))
		firstSub := feed.last()

		// Scope B: all products, resolves immediately.
		require.NoError(t, c.SetScope(context.Background(), Scope{}))

		require.Eventually(t, func() bool {
			return c.State() == StateSynced
		}, time.Second, 5*time.Millisecond)

		// Scope A's subscription was released when B took over.
		require.Equal(t, 1, firstSub.cancels)

		// Let A's snapshot resolve; it belongs to a dead generation.
		close(fakeCat.blockGet)
		time.Sleep(50 * time.Millisecond)

		require.Nil(t, c.Product("1"), "stale snapshot must not leak into the new scope")
		require.NotNil(t, c.Product("2"))
	})
}

func TestControllerLifecycle(t *testing.T) {
	t.Run("stop before start is safe", func(t *testing.T) {
		c := NewController(catalog.NewClient(&fakeSyncCatalog{}), &fakeFeed{})
		c.Stop()
		c.Stop()
		require.Equal(t, StateIdle, c.State())
	})

	t.Run("stop releases the subscription exactly once", func(t *testing.T) {
		feed := &fakeFeed{}
		c := newSyncedController(t, &fakeSyncCatalog{}, feed)

		sub := feed.last()
		c.Stop()
		c.Stop()

		require.Equal(t, 1, sub.cancels)
		require.Equal(t, StateIdle, c.State())
		require.Empty(t, c.Products())
	})

	t.Run("subscribe failure moves to error state", func(t *testing.T) {
		feed := &fakeFeed{err: errors.New("feed down")}
		c := NewController(catalog.NewClient(&fakeSyncCatalog{}), feed)

		err := c.SetScope(context.Background(), Scope{})
		require.Error(t, err)
		require.Equal(t, StateError, c.State())
	})
}
