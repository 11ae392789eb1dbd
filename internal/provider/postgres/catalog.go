package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/pricescout/internal/models"
	"github.com/wolfeidau/pricescout/internal/provider"
)

const productColumns = "id, title, description, price, discount_price, rating, image_url, category, created_at, updated_at"

const offerColumns = "id, product_id, store_name, store_price, store_url, in_stock, created_at"

// prefixedProductColumns qualifies the product column list with a table
// alias for use in joins.
func prefixedProductColumns(alias string) string {
	cols := strings.Split(productColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

// SelectProducts returns catalog rows matching the query, newest first.
func (p *Provider) SelectProducts(ctx context.Context, q provider.ProductQuery) ([]models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products`, productColumns)

	var (
		conds []string
		args  []any
	)

	if q.Category != "" {
		args = append(args, q.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY created_at DESC"

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
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

// GetProduct returns one product by id, or ErrNotFound.
func (p *Provider) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	rows, err := p.pool.Query(ctx, query, id)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapPostgresError(err)
		}
		return nil, provider.ErrNotFound
	}

	prod, err := scanProduct(rows)
	if err != nil {
		return nil, err
	}

	return &prod, nil
}

// SelectOffers returns store offers for one product or a batch, cheapest
// first.
func (p *Provider) SelectOffers(ctx context.Context, q provider.OfferQuery) ([]models.Offer, error) {
	ids := q.ProductIDs
	if q.ProductID != "" {
		ids = append([]string{q.ProductID}, ids...)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM product_stores
		WHERE product_id = ANY($1::uuid[])
		ORDER BY store_price ASC
	`, offerColumns)

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, offer)
	}

	return out, rows.Err()
}

// AddProduct inserts a catalog row. The change feed trigger broadcasts the
// insert.
func (p *Provider) AddProduct(ctx context.Context, prod models.Product) (models.Product, error) {
	query := fmt.Sprintf(`
		INSERT INTO products (title, description, price, discount_price, rating, image_url, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s
	`, productColumns)

	rows, err := p.pool.Query(ctx, query,
		prod.Title, prod.Description, prod.Price, prod.DiscountPrice,
		prod.Rating, prod.ImageURL, prod.Category)
	if err != nil {
		return models.Product{}, mapPostgresError(err)
	}
	defer rows.Close()

	return scanOneProduct(rows)
}

// UpdateProduct replaces a catalog row, returning ErrNotFound when the row
// does not exist.
func (p *Provider) UpdateProduct(ctx context.Context, prod models.Product) (models.Product, error) {
	query := fmt.Sprintf(`
		UPDATE products
		SET title = $2, description = $3, price = $4, discount_price = $5,
		    rating = $6, image_url = $7, category = $8, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, productColumns)

	rows, err := p.pool.Query(ctx, query,
		prod.ID, prod.Title, prod.Description, prod.Price, prod.DiscountPrice,
		prod.Rating, prod.ImageURL, prod.Category)
	if err != nil {
		return models.Product{}, mapPostgresError(err)
	}
	defer rows.Close()

	return scanOneProduct(rows)
}

// DeleteProduct removes a catalog row. Offer rows cascade, and each removed
// row is broadcast by the change feed triggers.
func (p *Provider) DeleteProduct(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return provider.ErrNotFound
	}
	return nil
}

// AddOffer inserts a store offer for an existing product.
func (p *Provider) AddOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	query := fmt.Sprintf(`
		INSERT INTO product_stores (product_id, store_name, store_price, store_url, in_stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`, offerColumns)

	rows, err := p.pool.Query(ctx, query,
		offer.ProductID, offer.StoreName, offer.Price, offer.URL, offer.InStock)
	if err != nil {
		return models.Offer{}, mapPostgresError(err)
	}
	defer rows.Close()

	return scanOneOffer(rows)
}

// UpdateOffer replaces a store offer, returning ErrNotFound when the row
// does not exist.
func (p *Provider) UpdateOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	query := fmt.Sprintf(`
		UPDATE product_stores
		SET store_name = $2, store_price = $3, store_url = $4, in_stock = $5
		WHERE id = $1
		RETURNING %s
	`, offerColumns)

	rows, err := p.pool.Query(ctx, query,
		offer.ID, offer.StoreName, offer.Price, offer.URL, offer.InStock)
	if err != nil {
		return models.Offer{}, mapPostgresError(err)
	}
	defer rows.Close()

	return scanOneOffer(rows)
}

// DeleteOffer removes a store offer.
func (p *Provider) DeleteOffer(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM product_stores WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return provider.ErrNotFound
	}
	return nil
}

func scanProduct(rows pgx.Rows) (models.Product, error) {
	var prod models.Product
	err := rows.Scan(
		&prod.ID,
		&prod.Title,
		&prod.Description,
		&prod.Price,
		&prod.DiscountPrice,
		&prod.Rating,
		&prod.ImageURL,
		&prod.Category,
		&prod.CreatedAt,
		&prod.UpdatedAt,
	)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to scan product row: %w", err)
	}
	return prod, nil
}

func scanOffer(rows pgx.Rows) (models.Offer, error) {
	var offer models.Offer
	err := rows.Scan(
		&offer.ID,
		&offer.ProductID,
		&offer.StoreName,
		&offer.Price,
		&offer.URL,
		&offer.InStock,
		&offer.CreatedAt,
	)
	if err != nil {
		return models.Offer{}, fmt.Errorf("failed to scan offer row: %w", err)
	}
	return offer, nil
}

func scanOneProduct(rows pgx.Rows) (models.Product, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Product{}, mapPostgresError(err)
		}
		return models.Product{}, provider.ErrNotFound
	}
	return scanProduct(rows)
}

func scanOneOffer(rows pgx.Rows) (models.Offer, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Offer{}, mapPostgresError(err)
		}
		return models.Offer{}, provider.ErrNotFound
	}
	return scanOffer(rows)
}
