package main

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCartStore_UpsertCreatesAndUpdates(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	item, err := store.UpsertLineItem(ctx, "cust1", "p1", 2)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if item.ID == "" {
		t.Error("expected a generated line item ID")
	}
	if item.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", item.Quantity)
	}

	// Upserting the same product updates the existing line item in place.
	updated, err := store.UpsertLineItem(ctx, "cust1", "p1", 5)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if updated.ID != item.ID {
		t.Errorf("expected same line item ID, got %s and %s", item.ID, updated.ID)
	}
	if updated.Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", updated.Quantity)
	}

	items, err := store.GetLineItems(ctx, "cust1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(items))
	}
}

func TestMemoryCartStore_UpsertZeroDeletes(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	item, err := store.UpsertLineItem(ctx, "cust1", "p1", 3)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	if _, err := store.UpsertLineItem(ctx, "cust1", "p1", 0); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	if _, err := store.FindLineItem(ctx, "cust1", item.ID); !errors.Is(err, ErrLineItemNotFound) {
		t.Errorf("expected ErrLineItemNotFound, got %v", err)
	}
	if _, err := store.FindLineItemByProduct(ctx, "cust1", "p1"); !errors.Is(err, ErrLineItemNotFound) {
		t.Errorf("expected ErrLineItemNotFound, got %v", err)
	}
}

func TestMemoryCartStore_FindByProduct(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	created, err := store.UpsertLineItem(ctx, "cust1", "p1", 1)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	found, err := store.FindLineItemByProduct(ctx, "cust1", "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("expected item %s, got %s", created.ID, found.ID)
	}

	// Another customer's cart is independent.
	if _, err := store.FindLineItemByProduct(ctx, "cust2", "p1"); !errors.Is(err, ErrLineItemNotFound) {
		t.Errorf("expected ErrLineItemNotFound, got %v", err)
	}
}

func TestMemoryCartStore_DeleteLineItem(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	item, _ := store.UpsertLineItem(ctx, "cust1", "p1", 2)

	if err := store.DeleteLineItem(ctx, "cust1", item.ID); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := store.DeleteLineItem(ctx, "cust1", item.ID); !errors.Is(err, ErrLineItemNotFound) {
		t.Errorf("expected ErrLineItemNotFound on second delete, got %v", err)
	}
}

func TestMemoryCartStore_ClearAndCustomers(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	store.UpsertLineItem(ctx, "cust1", "p1", 1)
	store.UpsertLineItem(ctx, "cust2", "p2", 1)

	customers, err := store.Customers(ctx)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers with carts, got %d", len(customers))
	}

	if err := store.Clear(ctx, "cust1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	items, err := store.GetLineItems(ctx, "cust1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty cart after clear, got %d items", len(items))
	}

	customers, _ = store.Customers(ctx)
	if len(customers) != 1 || customers[0] != "cust2" {
		t.Errorf("expected only cust2 to remain, got %v", customers)
	}
}
