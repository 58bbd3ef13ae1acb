package inmem

import (
	"context"
	"testing"
)

func TestRegistry_RegisterAndDiscover(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if err := r.Register(ctx, "cart-1", "cart", "localhost:8082"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := r.Register(ctx, "cart-2", "cart", "localhost:8083"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	addrs, err := r.Discover(ctx, "cart")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(addrs) != 2 {
		t.Errorf("expected 2 addresses, got %d", len(addrs))
	}
}

func TestRegistry_DiscoverUnknownService(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Discover(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown service, got nil")
	}
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	r.Register(ctx, "cart-1", "cart", "localhost:8082")

	if err := r.Deregister(ctx, "cart-1", "cart"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if _, err := r.Discover(ctx, "cart"); err == nil {
		t.Error("expected error after deregistering the only instance, got nil")
	}

	// Deregistering an unknown service is a no-op.
	if err := r.Deregister(ctx, "x", "ghost"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRegistry_HealthCheck(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if err := r.HealthCheck("cart-1", "cart"); err == nil {
		t.Error("expected error for unregistered service, got nil")
	}

	r.Register(ctx, "cart-1", "cart", "localhost:8082")

	if err := r.HealthCheck("cart-1", "cart"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := r.HealthCheck("cart-2", "cart"); err == nil {
		t.Error("expected error for unknown instance, got nil")
	}
}

func TestRegistry_ServiceAddressesFiltersStale(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	r.Register(ctx, "cart-1", "cart", "localhost:8082")

	addrs, err := r.ServiceAddresses(ctx, "cart")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "localhost:8082" {
		t.Errorf("expected fresh instance to be listed, got %v", addrs)
	}
}
