package memory

import (
	"context"
	"sort"

	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

// AddToWishlist saves a product for the signed-in user. Saving the same
// product twice is a no-op.
func (p *Provider) AddToWishlist(ctx context.Context, productID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return provider.ErrSessionRequired
	}
	if _, exists := p.products[productID]; !exists {
		return provider.ErrNotFound
	}

	userID := p.session.Identity.ID
	if p.wishlists[userID] == nil {
		p.wishlists[userID] = make(map[string]struct{})
	}
	p.wishlists[userID][productID] = struct{}{}

	return nil
}

// RemoveFromWishlist drops a saved product. Removing a product that was
// never saved is a no-op.
func (p *Provider) RemoveFromWishlist(ctx context.Context, productID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return provider.ErrSessionRequired
	}

	delete(p.wishlists[p.session.Identity.ID], productID)

	return nil
}

// ListWishlist returns the signed-in user's saved products, newest first.
// Saved products that have since been deleted from the catalog are skipped.
func (p *Provider) ListWishlist(ctx context.Context) ([]models.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil, provider.ErrSessionRequired
	}

	var out []models.Product
	for productID := range p.wishlists[p.session.Identity.ID] {
		if prod, exists := p.products[productID]; exists {
			out = append(out, prod)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}
