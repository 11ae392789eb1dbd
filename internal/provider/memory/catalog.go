package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

// SelectProducts returns catalog rows matching the query, newest first.
func (p *Provider) SelectProducts(ctx context.Context, q provider.ProductQuery) ([]models.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []models.Product
	for _, prod := range p.products {
		if q.Category != "" && prod.Category != q.Category {
			continue
		}
		if q.Search != "" && !matchesSearch(prod, q.Search) {
			continue
		}
		out = append(out, prod)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return page(out, q.Offset, q.Limit), nil
}

// GetProduct returns one product by id, or ErrNotFound.
func (p *Provider) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prod, exists := p.products[id]
	if !exists {
		return nil, provider.ErrNotFound
	}

	return &prod, nil
}

// SelectOffers returns store offers for one product or a batch, cheapest
// first.
func (p *Provider) SelectOffers(ctx context.Context, q provider.OfferQuery) ([]models.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wanted := make(map[string]struct{})
	if q.ProductID != "" {
		wanted[q.ProductID] = struct{}{}
	}
	for _, id := range q.ProductIDs {
		wanted[id] = struct{}{}
	}

	var out []models.Offer
	for _, offer := range p.offers {
		if _, ok := wanted[offer.ProductID]; !ok {
			continue
		}
		out = append(out, offer)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Price < out[j].Price
	})

	return out, nil
}

// AddProduct inserts a catalog row, filling in id and timestamps when unset,
// and publishes the insert on the change feed.
func (p *Provider) AddProduct(ctx context.Context, prod models.Product) (models.Product, error) {
	if prod.ID == "" {
		prod.ID = uuid.NewString()
	}

	now := time.Now()
	if prod.CreatedAt.IsZero() {
		prod.CreatedAt = now
	}
	prod.UpdatedAt = now

	p.mu.Lock()
	p.products[prod.ID] = prod
	p.mu.Unlock()

	p.publish(provider.ChangeEvent{
		Table: provider.TableProducts,
		Type:  provider.ChangeInsert,
		New:   mustRow(prod),
	})

	return prod, nil
}

// UpdateProduct replaces a catalog row and publishes the update. Returns
// ErrNotFound when the row does not exist.
func (p *Provider) UpdateProduct(ctx context.Context, prod models.Product) (models.Product, error) {
	p.mu.Lock()

	old, exists := p.products[prod.ID]
	if !exists {
		p.mu.Unlock()
		return models.Product{}, provider.ErrNotFound
	}

	prod.CreatedAt = old.CreatedAt
	prod.UpdatedAt = time.Now()
	p.products[prod.ID] = prod
	p.mu.Unlock()

	p.publish(provider.ChangeEvent{
		Table: provider.TableProducts,
		Type:  provider.ChangeUpdate,
		New:   mustRow(prod),
		Old:   mustRow(old),
	})

	return prod, nil
}

// DeleteProduct removes a catalog row and its offers, publishing a delete
// for each removed row.
func (p *Provider) DeleteProduct(ctx context.Context, id string) error {
	p.mu.Lock()

	old, exists := p.products[id]
	if !exists {
		p.mu.Unlock()
		return provider.ErrNotFound
	}
	delete(p.products, id)

	var removed []models.Offer
	for offerID, offer := range p.offers {
		if offer.ProductID == id {
			removed = append(removed, offer)
			delete(p.offers, offerID)
		}
	}
	p.mu.Unlock()

	for _, offer := range removed {
		p.publish(provider.ChangeEvent{
			Table: provider.TableOffers,
			Type:  provider.ChangeDelete,
			Old:   mustRow(offer),
		})
	}

	p.publish(provider.ChangeEvent{
		Table: provider.TableProducts,
		Type:  provider.ChangeDelete,
		Old:   mustRow(old),
	})

	return nil
}

// AddOffer inserts a store offer for an existing product and publishes the
// insert.
func (p *Provider) AddOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now()
	}

	p.mu.Lock()

	if _, exists := p.products[offer.ProductID]; !exists {
		p.mu.Unlock()
		return models.Offer{}, provider.ErrNotFound
	}
	p.offers[offer.ID] = offer
	p.mu.Unlock()

	p.publish(provider.ChangeEvent{
		Table: provider.TableOffers,
		Type:  provider.ChangeInsert,
		New:   mustRow(offer),
	})

	return offer, nil
}

// UpdateOffer replaces a store offer and publishes the update.
func (p *Provider) UpdateOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	p.mu.Lock()

	old, exists := p.offers[offer.ID]
	if !exists {
		p.mu.Unlock()
		return models.Offer{}, provider.ErrNotFound
	}

	offer.CreatedAt = old.CreatedAt
	p.offers[offer.ID] = offer
	p.mu.Unlock()

	p.publish(provider.ChangeEvent{
		Table: provider.TableOffers,
		Type:  provider.ChangeUpdate,
		New:   mustRow(offer),
		Old:   mustRow(old),
	})

	return offer, nil
}

// DeleteOffer removes a store offer and publishes the delete.
func (p *Provider) DeleteOffer(ctx context.Context, id string) error {
	p.mu.Lock()

	old, exists := p.offers[id]
	if !exists {
		p.mu.Unlock()
		return provider.ErrNotFound
	}
	delete(p.offers, id)
	p.mu.Unlock()

	p.publish(provider.ChangeEvent{
		Table: provider.TableOffers,
		Type:  provider.ChangeDelete,
		Old:   mustRow(old),
	})

	return nil
}

func matchesSearch(prod models.Product, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(prod.Title), term) ||
		strings.Contains(strings.ToLower(prod.Description), term)
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
