package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SandaminiI/serandib-microservices/common/api"
	"github.com/SandaminiI/serandib-microservices/common/broker"
	"github.com/SandaminiI/serandib-microservices/common/metrics"
)

// ConsistencyChecker verifies, per product, that the ledger's available
// quantity plus the reservations outstanding in carts equals the product's
// fixed total stock. Drift can only come from a crash between the two phases
// of a reservation change; the checker detects it, emits an auditable record
// and repairs it treating the ledger as the authoritative side.
type ConsistencyChecker struct {
	ledger    StockLedger
	store     CartStore
	catalog   ProductCatalog
	journal   *ReservationJournal
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.CartMetrics
	grace     time.Duration
}

// NewConsistencyChecker builds a checker. grace is how long an open journal
// entry may defer a repair: the window between a reservation's stock phase
// and its cart phase looks exactly like drift, and repairing it would undo a
// live operation. Drift still backed by an entry older than grace is treated
// as a genuine crash remnant.
func NewConsistencyChecker(ledger StockLedger, store CartStore, catalog ProductCatalog, journal *ReservationJournal, publisher EventPublisher, logger *slog.Logger, m *metrics.CartMetrics, grace time.Duration) *ConsistencyChecker {
	return &ConsistencyChecker{
		ledger:    ledger,
		store:     store,
		catalog:   catalog,
		journal:   journal,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		grace:     grace,
	}
}

// Run scans all products on a fixed interval until the context is canceled.
func (c *ConsistencyChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := c.CheckAll(ctx)
			if err != nil {
				c.logger.Error("consistency scan failed", slog.Any("error", err))
				continue
			}
			if len(records) > 0 {
				c.logger.Warn("consistency scan found drift", slog.Int("discrepancies", len(records)))
			}
		}
	}
}

// CheckAll verifies every product in the catalog and returns the discrepancy
// records for those that drifted.
func (c *ConsistencyChecker) CheckAll(ctx context.Context) ([]*api.DiscrepancyRecord, error) {
	products, err := c.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	var records []*api.DiscrepancyRecord
	for _, p := range products {
		record, err := c.CheckProduct(ctx, p.ID)
		if err != nil {
			return records, err
		}
		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}

// CheckProduct recomputes the invariant for one product. It returns nil when
// the product is consistent, otherwise the emitted discrepancy record.
func (c *ConsistencyChecker) CheckProduct(ctx context.Context, productID string) (*api.DiscrepancyRecord, error) {
	product, err := c.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	available, err := c.ledger.GetAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}

	reserved, err := c.sumReservations(ctx, productID)
	if err != nil {
		return nil, err
	}

	delta := (available + reserved) - product.TotalStock
	if delta == 0 {
		return nil, nil
	}

	// An open journal entry younger than the grace period means a two-phase
	// operation is mid-flight right now; its stock phase has landed and its
	// cart phase has not, which reads as drift. Defer — the next scan either
	// sees it closed or old enough to count as a crash remnant.
	openEntries := c.journal.OpenFor(productID)
	for _, e := range openEntries {
		if time.Since(e.OpenedAt) < c.grace {
			c.logger.Info("drift overlaps in-flight reservation, deferring",
				slog.String("product_id", productID),
				slog.String("journal_id", e.ID),
				slog.Int("delta", int(delta)),
			)
			return nil, nil
		}
	}

	record := &api.DiscrepancyRecord{
		ID:         uuid.New().String(),
		ProductID:  productID,
		TotalStock: product.TotalStock,
		Available:  available,
		Reserved:   reserved,
		Delta:      delta,
		DetectedAt: time.Now(),
	}
	for _, e := range openEntries {
		record.OpenOps = append(record.OpenOps, e.ID)
	}

	c.logger.Error("consistency violation detected",
		slog.String("record_id", record.ID),
		slog.String("product_id", productID),
		slog.Int("total_stock", int(product.TotalStock)),
		slog.Int("available", int(available)),
		slog.Int("reserved", int(reserved)),
		slog.Int("delta", int(delta)),
	)
	if c.metrics != nil {
		c.metrics.DriftDetected.Inc()
	}

	if err := c.repair(ctx, record); err != nil {
		c.logger.Error("repair failed",
			slog.String("record_id", record.ID),
			slog.Any("error", err),
		)
	} else {
		record.Repaired = true
		if c.metrics != nil {
			c.metrics.DriftRepaired.Inc()
		}
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, broker.StockDriftEvent, record); err != nil {
			c.logger.Error("failed to publish drift record", slog.Any("error", err))
		}
	}

	return record, nil
}

// repair restores the invariant. The ledger is the safety-critical side and
// is trusted: units the ledger consumed that no cart accounts for (a crash
// after the stock phase) are returned to it, and cart quantities the ledger
// never accounted for are trimmed. The ledger is never debited during a
// repair.
func (c *ConsistencyChecker) repair(ctx context.Context, record *api.DiscrepancyRecord) error {
	if record.Delta < 0 {
		// Reservation made, cart entry missing: give the leaked units back.
		leaked := -record.Delta
		if _, err := c.ledger.Adjust(ctx, record.ProductID, leaked); err != nil {
			return fmt.Errorf("failed to return leaked stock: %w", err)
		}
		for _, id := range record.OpenOps {
			c.journal.Close(id)
		}
		c.logger.Info("returned leaked stock",
			slog.String("record_id", record.ID),
			slog.String("product_id", record.ProductID),
			slog.Int("units", int(leaked)),
		)
		return nil
	}

	// Carts hold more units than the ledger ever granted: trim them.
	return c.trimCarts(ctx, record)
}

func (c *ConsistencyChecker) trimCarts(ctx context.Context, record *api.DiscrepancyRecord) error {
	remaining := record.Delta

	customers, err := c.store.Customers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list carts: %w", err)
	}

	for _, customerID := range customers {
		if remaining == 0 {
			break
		}

		items, err := c.store.GetLineItems(ctx, customerID)
		if err != nil {
			return err
		}

		for _, item := range items {
			if remaining == 0 {
				break
			}
			if item.ProductID != record.ProductID {
				continue
			}

			trim := item.Quantity
			if trim > remaining {
				trim = remaining
			}

			if _, err := c.store.UpsertLineItem(ctx, customerID, item.ProductID, item.Quantity-trim); err != nil {
				return fmt.Errorf("failed to trim line item %s: %w", item.ID, err)
			}
			remaining -= trim

			c.logger.Warn("trimmed unbacked reservation",
				slog.String("record_id", record.ID),
				slog.String("customer_id", customerID),
				slog.String("line_item_id", item.ID),
				slog.Int("units", int(trim)),
			)
		}
	}

	if remaining != 0 {
		return fmt.Errorf("could not absorb %d unbacked units for product %s", remaining, record.ProductID)
	}

	return nil
}

func (c *ConsistencyChecker) sumReservations(ctx context.Context, productID string) (int32, error) {
	customers, err := c.store.Customers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list carts: %w", err)
	}

	var reserved int32
	for _, customerID := range customers {
		items, err := c.store.GetLineItems(ctx, customerID)
		if err != nil {
			return 0, err
		}
		for _, item := range items {
			if item.ProductID == productID {
				reserved += item.Quantity
			}
		}
	}

	return reserved, nil
}
