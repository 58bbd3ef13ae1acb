package main

import (
	"context"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// CartService is the operation surface exposed to the HTTP layer and to the
// broker consumer. Every quantity-changing operation runs as a two-phase
// reservation: stock first, cart second.
type CartService interface {
	AddToCart(ctx context.Context, customerID, productID string, quantity int32) (*api.LineItem, error)
	IncreaseQuantity(ctx context.Context, customerID, cartItemID string, by int32) (*api.LineItem, error)
	DecreaseQuantity(ctx context.Context, customerID, cartItemID string, by int32) (*api.LineItem, error)
	RemoveItem(ctx context.Context, customerID, cartItemID string) error
	GetCart(ctx context.Context, customerID string) (*api.Cart, error)
	CommitCart(ctx context.Context, customerID string) error
	AbandonCart(ctx context.Context, customerID string) error
}

// StockLedger owns the per-product available-quantity counters. Adjust is the
// sole mutator and must be linearizable per product ID.
type StockLedger interface {
	GetAvailable(ctx context.Context, productID string) (int32, error)
	// Adjust atomically applies delta (positive returns stock, negative
	// consumes it) and reports the new available quantity. A negative delta
	// that would drive the counter below zero fails in full with
	// ErrInsufficientStock.
	Adjust(ctx context.Context, productID string, delta int32) (int32, error)
}

// CartStore is a pure record store for per-customer line items. It never
// touches the ledger; keeping the two consistent is the coordinator's job.
type CartStore interface {
	GetLineItems(ctx context.Context, customerID string) ([]*api.LineItem, error)
	FindLineItem(ctx context.Context, customerID, cartItemID string) (*api.LineItem, error)
	FindLineItemByProduct(ctx context.Context, customerID, productID string) (*api.LineItem, error)
	// UpsertLineItem sets the line item's quantity directly; creates it when
	// absent and quantity > 0, deletes it when quantity <= 0.
	UpsertLineItem(ctx context.Context, customerID, productID string, quantity int32) (*api.LineItem, error)
	DeleteLineItem(ctx context.Context, customerID, cartItemID string) error
	Clear(ctx context.Context, customerID string) error
	// Customers lists customers that currently have a non-empty cart.
	Customers(ctx context.Context) ([]string, error)
}

// ProductCatalog is the read-only view of the product catalog this service
// consumes: display attributes plus the fixed total stock per product.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*api.Product, error)
	GetProducts(ctx context.Context, ids []string) ([]*api.Product, error)
	ListProducts(ctx context.Context) ([]*api.Product, error)
}

// IdentityResolver maps an opaque session token to a customer ID.
type IdentityResolver interface {
	ResolveCustomer(ctx context.Context, token string) (string, error)
}

// EventPublisher fans cart lifecycle events out to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}
