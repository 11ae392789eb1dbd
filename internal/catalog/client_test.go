package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

type fakeCatalog struct {
	products []models.Product
	offers   []models.Offer
	err      error

	lastProductQuery provider.ProductQuery
	lastOfferQuery   provider.OfferQuery
}

func (f *fakeCatalog) SelectProducts(ctx context.Context, q provider.ProductQuery) ([]models.Product, error) {
	f.lastProductQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.products {
		if f.products[i].ID == id {
			return &f.products[i], nil
		}
	}
	return nil, provider.ErrNotFound
}

func (f *fakeCatalog) SelectOffers(ctx context.Context, q provider.OfferQuery) ([]models.Offer, error) {
	f.lastOfferQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.offers, nil
}

func product(id string) models.Product {
	return models.Product{ID: id, Title: "Product " + id, CreatedAt: time.Now()}
}

func TestClientListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("applies default limit", func(t *testing.T) {
		fake := &fakeCatalog{products: []models.Product{product("1")}}
		c := NewClient(fake)

		got := c.ListProducts(ctx, Filter{})
		require.Len(t, got, 1)
		require.Equal(t, DefaultLimit, fake.lastProductQuery.Limit)
	})

	t.Run("passes category filter", func(t *testing.T) {
		fake := &fakeCatalog{}
		c := NewClient(fake)

		c.ListProducts(ctx, Filter{Category: "electronics", Limit: 5, Offset: 10})
		require.Equal(t, "electronics", fake.lastProductQuery.Category)
		require.Equal(t, 5, fake.lastProductQuery.Limit)
		require.Equal(t, 10, fake.lastProductQuery.Offset)
	})

	t.Run("query failure degrades to empty", func(t *testing.T) {
		fake := &fakeCatalog{err: errors.New("connection refused")}
		c := NewClient(fake)

		got := c.ListProducts(ctx, Filter{})
		require.Empty(t, got)
	})
}

func TestClientGetProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("point lookup", func(t *testing.T) {
		fake := &fakeCatalog{products: []models.Product{product("1")}}
		c := NewClient(fake)

		got := c.GetProduct(ctx, "1")
		require.NotNil(t, got)
		require.Equal(t, "1", got.ID)
	})

	t.Run("not found and query error both report nil", func(t *testing.T) {
		c := NewClient(&fakeCatalog{})
		require.Nil(t, c.GetProduct(ctx, "missing"))

		c = NewClient(&fakeCatalog{err: errors.New("timeout")})
		require.Nil(t, c.GetProduct(ctx, "1"))
	})
}

func TestClientListStores(t *testing.T) {
	ctx := context.Background()

	t.Run("offers preserve provider price ordering", func(t *testing.T) {
		fake := &fakeCatalog{offers: []models.Offer{
			{ID: "o1", ProductID: "1", Price: 89.99},
			{ID: "o2", ProductID: "1", Price: 94.50},
			{ID: "o3", ProductID: "1", Price: 99.00},
		}}
		c := NewClient(fake)

		got := c.ListStores(ctx, "1")
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			require.LessOrEqual(t, got[i-1].Price, got[i].Price)
		}
		require.Equal(t, "1", fake.lastOfferQuery.ProductID)
	})

	t.Run("failure degrades to empty", func(t *testing.T) {
		c := NewClient(&fakeCatalog{err: errors.New("boom")})
		require.Empty(t, c.ListStores(ctx, "1"))
	})

	t.Run("batched lookup passes all ids", func(t *testing.T) {
		fake := &fakeCatalog{}
		c := NewClient(fake)

		c.ListStoresForProducts(ctx, []string{"1", "2", "3"})
		require.Equal(t, []string{"1", "2", "3"}, fake.lastOfferQuery.ProductIDs)
	})

	t.Run("empty batch skips the query", func(t *testing.T) {
		fake := &fakeCatalog{err: errors.New("should not be called")}
		c := NewClient(fake)

		require.Empty(t, c.ListStoresForProducts(ctx, nil))
	})
}

func TestClientSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("passes query through", func(t *testing.T) {
		fake := &fakeCatalog{products: []models.Product{product("1")}}
		c := NewClient(fake)

		got := c.Search(ctx, "headphones", 0)
		require.Len(t, got, 1)
		require.Equal(t, "headphones", fake.lastProductQuery.Search)
		require.Equal(t, DefaultLimit, fake.lastProductQuery.Limit)
	})

	t.Run("failure degrades to empty", func(t *testing.T) {
		c := NewClient(&fakeCatalog{err: errors.New("boom")})
		require.Empty(t, c.Search(ctx, "headphones", 5))
	})
}
