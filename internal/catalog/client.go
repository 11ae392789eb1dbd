// Package catalog is a stateless read facade over the products and
// product_stores tables.
//
// Reads degrade to empty results on failure: errors are logged and swallowed
// rather than returned, so callers render a "no results" state instead of an
// error banner. A stricter implementation would surface the failure; the
// degrade policy is kept deliberately.
package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

// DefaultLimit caps ListProducts when the caller does not set one.
const DefaultLimit = 10

// Filter narrows a product listing.
type Filter struct {
	Limit    int
	Offset   int
	Category string
}

// Client issues catalog queries through the provider. It holds no cache; the
// realtime controller layers local state on top of these snapshots.
type Client struct {
	catalog provider.Catalog
}

// NewClient creates a catalog client over the given provider.
func NewClient(catalog provider.Catalog) *Client {
	return &Client{catalog: catalog}
}

// ListProducts returns products ordered by created_at descending. An empty
// result is a valid outcome, including on query failure.
func (c *Client) ListProducts(ctx context.Context, filter Filter) []models.Product {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	products, err := c.catalog.SelectProducts(ctx, provider.ProductQuery{
		Limit:    limit,
		Offset:   filter.Offset,
		Category: filter.Category,
	})
	if err != nil {
		log.Error().Err(err).Str("category", filter.Category).Msg("failed to list products")
		return nil
	}

	return products
}

// GetProduct returns the product or nil. "Not found" and "query error" are
// both reported as nil.
func (c *Client) GetProduct(ctx context.Context, id string) *models.Product {
	product, err := c.catalog.GetProduct(ctx, id)
	if err != nil {
		if !errors.Is(err, provider.ErrNotFound) {
			log.Error().Err(err).Str("product_id", id).Msg("failed to get product")
		}
		return nil
	}

	return product
}

// ListStores returns the offers for a product ordered by price ascending,
// so index 0 is always the cheapest offer.
func (c *Client) ListStores(ctx context.Context, productID string) []models.Offer {
	offers, err := c.catalog.SelectOffers(ctx, provider.OfferQuery{ProductID: productID})
	if err != nil {
		log.Error().Err(err).Str("product_id", productID).Msg("failed to list stores")
		return nil
	}

	return offers
}

// ListStoresForProducts batches the offer lookup for a set of product ids.
func (c *Client) ListStoresForProducts(ctx context.Context, productIDs []string) []models.Offer {
	if len(productIDs) == 0 {
		return nil
	}

	offers, err := c.catalog.SelectOffers(ctx, provider.OfferQuery{ProductIDs: productIDs})
	if err != nil {
		log.Error().Err(err).Int("products", len(productIDs)).Msg("failed to list stores for products")
		return nil
	}

	return offers
}

// Search returns products whose title or description contains the query,
// case-insensitively.
func (c *Client) Search(ctx context.Context, query string, limit int) []models.Product {
	if limit <= 0 {
		limit = DefaultLimit
	}

	products, err := c.catalog.SelectProducts(ctx, provider.ProductQuery{
		Limit:  limit,
		Search: query,
	})
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("search failed")
		return nil
	}

	return products
}
