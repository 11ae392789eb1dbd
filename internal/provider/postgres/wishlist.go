package postgres

import (
	"context"
	"fmt"

	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

// currentUserID returns the signed-in user's id, or ErrSessionRequired.
func (p *Provider) currentUserID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return "", provider.ErrSessionRequired
	}
	return p.session.Identity.ID, nil
}

// AddToWishlist saves a product for the signed-in user. Saving the same
// product twice is a no-op; an unknown product surfaces as ErrNotFound via
// the foreign key.
func (p *Provider) AddToWishlist(ctx context.Context, productID string) error {
	userID, err := p.currentUserID()
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO wishlists (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, productID)

	return mapPostgresError(err)
}

// RemoveFromWishlist drops a saved product. Removing a product that was
// never saved is a no-op.
func (p *Provider) RemoveFromWishlist(ctx context.Context, productID string) error {
	userID, err := p.currentUserID()
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx,
		`DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`, userID, productID)

	return mapPostgresError(err)
}

// ListWishlist returns the signed-in user's saved products, newest first.
func (p *Provider) ListWishlist(ctx context.Context) ([]models.Product, error) {
	userID, err := p.currentUserID()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM products p
		JOIN wishlists w ON w.product_id = p.id
		WHERE w.user_id = $1
		ORDER BY p.created_at DESC
	`, prefixedProductColumns("p"))

	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, prod)
	}

	return out, rows.Err()
}
