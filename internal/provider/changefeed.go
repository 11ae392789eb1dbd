package provider

import (
	"context"
	"encoding/json"
)

// Table names covered by the change feed.
const (
	TableProducts = "products"
	TableOffers   = "product_stores"
)

// ChangeType classifies a row-level change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is a single row-level notification. New is present for
// inserts and updates, Old for updates and deletes. Rows are delivered as
// raw JSON so the feed stays table-agnostic; consumers decode per table.
type ChangeEvent struct {
	Table string          `json:"table"`
	Type  ChangeType      `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// ChangeSubscription scopes a change feed subscription. With a ProductID the
// feed delivers only product rows with that id and offer rows referencing
// it; otherwise both tables are delivered unfiltered.
type ChangeSubscription struct {
	ProductID string
}

// Changefeed delivers row-level change notifications.
//
// Events for a subscription arrive on a single channel in per-table arrival
// order; no reordering or coalescing is performed. The cancel function
// releases the subscription and closes the channel, and is safe to call more
// than once.
type Changefeed interface {
	Subscribe(ctx context.Context, sub ChangeSubscription) (<-chan ChangeEvent, func(), error)
}

// rowKey is the minimal row shape needed for subscription filtering.
type rowKey struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

// Matches reports whether the event falls inside the subscription's scope.
func (s ChangeSubscription) Matches(ev ChangeEvent) bool {
	if s.ProductID == "" {
		return true
	}

	raw := ev.New
	if len(raw) == 0 {
		raw = ev.Old
	}

	var key rowKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return false
	}

	switch ev.Table {
	case TableProducts:
		return key.ID == s.ProductID
	case TableOffers:
		return key.ProductID == s.ProductID
	default:
		return false
	}
}
