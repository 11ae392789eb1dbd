package models

import "time"

// Product is a catalog entry aggregated across retailers.
// Rows are owned by the backend; clients only ever observe them, so local
// copies carry last-writer-wins semantics keyed by ID.
type Product struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	DiscountPrice *float64  `json:"discount_price,omitempty"`
	Rating        float64   `json:"rating"`
	ImageURL      string    `json:"image_url"`
	Category      string    `json:"category"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CurrentPrice returns the discounted price when one is set, otherwise the
// list price.
func (p *Product) CurrentPrice() float64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// Offer is a single store's listing for a product. Many offers map to one
// product via ProductID; the reverse relation is always computed by
// filtering, never stored.
type Offer struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	StoreName string    `json:"store_name"`
	Price     float64   `json:"store_price"`
	URL       string    `json:"store_url"`
	InStock   bool      `json:"in_stock"`
	CreatedAt time.Time `json:"created_at"`
}
