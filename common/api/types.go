// Package api holds the domain types exchanged between the cart service
// layers and serialized on the wire (HTTP/JSON, AMQP, MongoDB).
package api

import "time"

// Product is the catalog's view of a sellable item. TotalStock is the fixed
// quantity the product was created with; the ledger tracks how much of it is
// still available.
type Product struct {
	ID         string `json:"id" bson:"_id"`
	Name       string `json:"name" bson:"name"`
	Price      int64  `json:"price" bson:"price"` // cents
	ImageRef   string `json:"image_ref" bson:"image_ref"`
	TotalStock int32  `json:"total_stock" bson:"total_stock"`
}

// LineItem is one cart entry: a reserved quantity of a single product for one
// customer. Quantity is always >= 1; an item that would drop to zero is
// deleted instead.
type LineItem struct {
	ID        string    `json:"id" bson:"id"`
	ProductID string    `json:"product_id" bson:"product_id"`
	Quantity  int32     `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"added_at" bson:"added_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// CartItemView is a line item joined with catalog display data, as returned
// by GetCart.
type CartItemView struct {
	*LineItem
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	ImageRef  string `json:"image_ref"`
}

// Cart is the customer-facing snapshot of a cart.
type Cart struct {
	CustomerID string          `json:"customer_id"`
	Items      []*CartItemView `json:"items"`
	Total      int64           `json:"total"` // cents
}

// DiscrepancyRecord is the auditable output of a consistency check that found
// drift between the stock ledger and the outstanding cart reservations for a
// product. Delta is observed minus expected: negative means reservations were
// recorded without matching cart entries (leaked stock), positive means cart
// entries exist that the ledger never accounted for.
type DiscrepancyRecord struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	TotalStock int32     `json:"total_stock"`
	Available  int32     `json:"available"`
	Reserved   int32     `json:"reserved"`
	Delta      int32     `json:"delta"`
	OpenOps    []string  `json:"open_ops,omitempty"` // journal entry IDs still open
	Repaired   bool      `json:"repaired"`
	DetectedAt time.Time `json:"detected_at"`
}

// CartEvent is the payload published on cart.committed / cart.abandoned and
// consumed from order.paid / cart.expired.
type CartEvent struct {
	CustomerID string      `json:"customer_id"`
	Items      []*LineItem `json:"items,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
