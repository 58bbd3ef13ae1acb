package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SandaminiI/serandib-microservices/common/api"
	"github.com/SandaminiI/serandib-microservices/common/broker"
)

type capturePublisher struct {
	events   []string
	payloads []any
}

func (p *capturePublisher) Publish(ctx context.Context, event string, payload any) error {
	p.events = append(p.events, event)
	p.payloads = append(p.payloads, payload)
	return nil
}

func newChecker(env *testEnv, publisher EventPublisher) *ConsistencyChecker {
	return newCheckerWithGrace(env, publisher, 0)
}

func newCheckerWithGrace(env *testEnv, publisher EventPublisher, grace time.Duration) *ConsistencyChecker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConsistencyChecker(env.ledger, env.store, env.catalog, env.journal, publisher, logger, nil, grace)
}

func TestChecker_ConsistentStateReportsNothing(t *testing.T) {
	env := newTestEnv(product("p1", 10), product("p2", 5))
	ctx := context.Background()

	env.svc.AddToCart(ctx, "cust1", "p1", 3)

	records, err := newChecker(env, nil).CheckAll(ctx)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no discrepancies, got %d", len(records))
	}
}

// A crash between the stock phase and the cart phase leaves consumed units no
// cart accounts for. The checker returns them to the ledger and closes the
// orphaned journal entry.
func TestChecker_RepairsLeakedReservation(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	ctx := context.Background()

	// Stock phase succeeded, cart phase never happened.
	if _, err := env.ledger.Adjust(ctx, "p1", -3); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	entry := env.journal.Open("cust1", "p1", -3)

	publisher := &capturePublisher{}
	record, err := newChecker(env, publisher).CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record == nil {
		t.Fatal("expected a discrepancy record")
	}
	if record.Delta != -3 {
		t.Errorf("expected delta -3, got %d", record.Delta)
	}
	if !record.Repaired {
		t.Error("expected record marked repaired")
	}
	if len(record.OpenOps) != 1 || record.OpenOps[0] != entry.ID {
		t.Errorf("expected open op %s on record, got %v", entry.ID, record.OpenOps)
	}

	available, _ := env.ledger.GetAvailable(ctx, "p1")
	if available != 10 {
		t.Errorf("expected leaked units returned, got %d available", available)
	}
	if open := env.journal.OpenEntries(); len(open) != 0 {
		t.Errorf("expected journal entry closed, got %d open", len(open))
	}
	if len(publisher.events) != 1 || publisher.events[0] != broker.StockDriftEvent {
		t.Errorf("expected one %s event, got %v", broker.StockDriftEvent, publisher.events)
	}

	// The repaired product is consistent on the next scan.
	record, err = newChecker(env, nil).CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record != nil {
		t.Errorf("expected no discrepancy after repair, got delta %d", record.Delta)
	}
}

// A scan that lands between the stock phase and the cart phase of a live
// operation sees drift, but must not "repair" it: returning those units
// while the cart write is still coming would let them be sold twice.
func TestChecker_DefersDriftOfInFlightOperation(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	ctx := context.Background()

	// Stock phase landed, cart write still pending.
	if _, err := env.ledger.Adjust(ctx, "p1", -3); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	entry := env.journal.Open("cust1", "p1", -3)

	checker := newCheckerWithGrace(env, nil, time.Minute)
	record, err := checker.CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record != nil {
		t.Fatalf("expected deferral, got record with delta %d", record.Delta)
	}

	available, _ := env.ledger.GetAvailable(ctx, "p1")
	if available != 7 {
		t.Errorf("expected ledger untouched at 7, got %d", available)
	}
	if open := env.journal.OpenEntries(); len(open) != 1 || open[0].ID != entry.ID {
		t.Errorf("expected the in-flight journal entry to stay open, got %v", open)
	}

	// The operation completes its cart phase.
	if _, err := env.store.UpsertLineItem(ctx, "cust1", "p1", 3); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	env.journal.Close(entry.ID)

	record, err = checker.CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record != nil {
		t.Errorf("expected consistency after completion, got delta %d", record.Delta)
	}
	env.requireInvariant(t, "p1", 10)
}

// Drift backed only by an entry older than the grace period is a crash
// remnant; the grace period must not defer it forever.
func TestChecker_RepairsDriftBackedByStaleEntry(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	ctx := context.Background()

	if _, err := env.ledger.Adjust(ctx, "p1", -3); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	entry := env.journal.Open("cust1", "p1", -3)
	entry.OpenedAt = time.Now().Add(-2 * time.Minute)

	record, err := newCheckerWithGrace(env, nil, time.Minute).CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record == nil || !record.Repaired {
		t.Fatalf("expected repaired record, got %+v", record)
	}

	available, _ := env.ledger.GetAvailable(ctx, "p1")
	if available != 10 {
		t.Errorf("expected leaked units returned, got %d available", available)
	}
	if open := env.journal.OpenEntries(); len(open) != 0 {
		t.Errorf("expected stale journal entry closed, got %d open", len(open))
	}
}

// Cart quantities the ledger never granted are trimmed; the ledger is not
// debited during repair.
func TestChecker_TrimsUnbackedCartQuantity(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	ctx := context.Background()

	// Cart write without the stock phase.
	if _, err := env.store.UpsertLineItem(ctx, "cust1", "p1", 4); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	record, err := newChecker(env, nil).CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record == nil {
		t.Fatal("expected a discrepancy record")
	}
	if record.Delta != 4 {
		t.Errorf("expected delta 4, got %d", record.Delta)
	}
	if !record.Repaired {
		t.Error("expected record marked repaired")
	}

	available, _ := env.ledger.GetAvailable(ctx, "p1")
	if available != 10 {
		t.Errorf("expected ledger untouched, got %d available", available)
	}

	items, _ := env.store.GetLineItems(ctx, "cust1")
	if len(items) != 0 {
		t.Errorf("expected unbacked line item trimmed away, got %d items", len(items))
	}
	env.requireInvariant(t, "p1", 10)
}

// Partial trim: only the unbacked share of a line item is removed.
func TestChecker_TrimsOnlyTheUnbackedShare(t *testing.T) {
	env := newTestEnv(product("p1", 10))
	ctx := context.Background()

	item, err := env.svc.AddToCart(ctx, "cust1", "p1", 3)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	// Two phantom units on top of a legitimate reservation of 3.
	if _, err := env.store.UpsertLineItem(ctx, "cust1", "p1", 5); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	record, err := newChecker(env, nil).CheckProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if record == nil || record.Delta != 2 {
		t.Fatalf("expected delta 2, got %+v", record)
	}

	trimmed, err := env.store.FindLineItem(ctx, "cust1", item.ID)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if trimmed.Quantity != 3 {
		t.Errorf("expected quantity trimmed back to 3, got %d", trimmed.Quantity)
	}
	env.requireInvariant(t, "p1", 10)
}

func TestChecker_CheckAllReportsEachDriftedProduct(t *testing.T) {
	env := newTestEnv(product("p1", 10), product("p2", 5), product("p3", 8))
	ctx := context.Background()

	env.ledger.Adjust(ctx, "p1", -2)
	env.store.UpsertLineItem(ctx, "cust1", "p2", 1)

	records, err := newChecker(env, nil).CheckAll(ctx)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 discrepancy records, got %d", len(records))
	}

	byProduct := make(map[string]*api.DiscrepancyRecord)
	for _, r := range records {
		byProduct[r.ProductID] = r
	}
	if r := byProduct["p1"]; r == nil || r.Delta != -2 {
		t.Errorf("expected p1 delta -2, got %+v", r)
	}
	if r := byProduct["p2"]; r == nil || r.Delta != 1 {
		t.Errorf("expected p2 delta 1, got %+v", r)
	}

	env.requireInvariant(t, "p1", 10)
	env.requireInvariant(t, "p2", 5)
	env.requireInvariant(t, "p3", 8)
}
