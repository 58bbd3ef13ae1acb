package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SandaminiI/serandib-microservices/common/api"
	"github.com/SandaminiI/serandib-microservices/common/broker"
)

// service is the reservation coordinator: the only component that mutates
// both the stock ledger and the cart store. Every quantity change runs the
// same two-phase sequence — adjust stock, then write the cart — so a rejected
// stock adjustment leaves both stores untouched, and a cart write that fails
// after the stock phase is compensated or left in the journal for the
// consistency checker.
//
// Lock order is fixed: the per-customer lock is taken first, the per-product
// stock serialization happens inside the ledger. No operation ever takes a
// second customer lock, so there is no cycle to deadlock on.
type service struct {
	ledger    StockLedger
	store     CartStore
	catalog   ProductCatalog
	journal   *ReservationJournal
	publisher EventPublisher
	logger    *slog.Logger

	custMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewService(ledger StockLedger, store CartStore, catalog ProductCatalog, journal *ReservationJournal, publisher EventPublisher, logger *slog.Logger) *service {
	return &service{
		ledger:    ledger,
		store:     store,
		catalog:   catalog,
		journal:   journal,
		publisher: publisher,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *service) AddToCart(ctx context.Context, customerID, productID string, quantity int32) (*api.LineItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("add to cart: %w", ErrInvalidQuantity)
	}

	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	unlock := s.lockCustomer(customerID)
	defer unlock()

	// A cart never holds two line items for the same product; adding to an
	// existing one is an increase. Only a definite not-found may fall through
	// to the create path: creating on a failed read would overwrite whatever
	// quantity the lookup could not see.
	existing, err := s.store.FindLineItemByProduct(ctx, customerID, productID)
	switch {
	case err == nil:
		return s.increase(ctx, customerID, existing, quantity)
	case !errors.Is(err, ErrLineItemNotFound):
		return nil, err
	}

	if _, err := s.ledger.Adjust(ctx, productID, -quantity); err != nil {
		return nil, err
	}

	entry := s.journal.Open(customerID, productID, -quantity)

	item, err := s.store.UpsertLineItem(ctx, customerID, productID, quantity)
	if err != nil {
		return nil, s.compensate(ctx, entry, err)
	}
	s.journal.Close(entry.ID)

	return item, nil
}

func (s *service) IncreaseQuantity(ctx context.Context, customerID, cartItemID string, by int32) (*api.LineItem, error) {
	if by < 1 {
		return nil, fmt.Errorf("increase quantity: %w", ErrInvalidQuantity)
	}

	unlock := s.lockCustomer(customerID)
	defer unlock()

	item, err := s.store.FindLineItem(ctx, customerID, cartItemID)
	if err != nil {
		return nil, err
	}

	return s.increase(ctx, customerID, item, by)
}

// increase reserves `by` more units for an existing line item. Caller holds
// the customer lock.
func (s *service) increase(ctx context.Context, customerID string, item *api.LineItem, by int32) (*api.LineItem, error) {
	if _, err := s.ledger.Adjust(ctx, item.ProductID, -by); err != nil {
		return nil, err
	}

	entry := s.journal.Open(customerID, item.ProductID, -by)

	updated, err := s.store.UpsertLineItem(ctx, customerID, item.ProductID, item.Quantity+by)
	if err != nil {
		return nil, s.compensate(ctx, entry, err)
	}
	s.journal.Close(entry.ID)

	return updated, nil
}

func (s *service) DecreaseQuantity(ctx context.Context, customerID, cartItemID string, by int32) (*api.LineItem, error) {
	if by < 1 {
		return nil, fmt.Errorf("decrease quantity: %w", ErrInvalidQuantity)
	}

	unlock := s.lockCustomer(customerID)
	defer unlock()

	item, err := s.store.FindLineItem(ctx, customerID, cartItemID)
	if err != nil {
		return nil, err
	}

	// A decrease may not empty the line item; RemoveItem is the operation
	// for that.
	if item.Quantity-by < 1 {
		return nil, fmt.Errorf("decrease %s by %d (current %d): %w", cartItemID, by, item.Quantity, ErrInvalidQuantity)
	}

	// Returning stock can never violate the non-negative invariant; a
	// failure here is infrastructure, and nothing has changed yet.
	if _, err := s.ledger.Adjust(ctx, item.ProductID, by); err != nil {
		return nil, err
	}

	entry := s.journal.Open(customerID, item.ProductID, by)

	updated, err := s.store.UpsertLineItem(ctx, customerID, item.ProductID, item.Quantity-by)
	if err != nil {
		return nil, s.compensate(ctx, entry, err)
	}
	s.journal.Close(entry.ID)

	return updated, nil
}

func (s *service) RemoveItem(ctx context.Context, customerID, cartItemID string) error {
	unlock := s.lockCustomer(customerID)
	defer unlock()

	item, err := s.store.FindLineItem(ctx, customerID, cartItemID)
	if err != nil {
		return err
	}

	return s.release(ctx, customerID, item)
}

// release returns an item's full reserved quantity to the ledger and deletes
// the line item. Caller holds the customer lock.
func (s *service) release(ctx context.Context, customerID string, item *api.LineItem) error {
	if _, err := s.ledger.Adjust(ctx, item.ProductID, item.Quantity); err != nil {
		return err
	}

	entry := s.journal.Open(customerID, item.ProductID, item.Quantity)

	if err := s.store.DeleteLineItem(ctx, customerID, item.ID); err != nil {
		return s.compensate(ctx, entry, err)
	}
	s.journal.Close(entry.ID)

	return nil
}

func (s *service) GetCart(ctx context.Context, customerID string) (*api.Cart, error) {
	items, err := s.store.GetLineItems(ctx, customerID)
	if err != nil {
		return nil, err
	}

	cart := &api.Cart{
		CustomerID: customerID,
		Items:      make([]*api.CartItemView, 0, len(items)),
	}
	if len(items) == 0 {
		return cart, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*api.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, item := range items {
		view := &api.CartItemView{LineItem: item}
		if p, ok := byID[item.ProductID]; ok {
			view.Name = p.Name
			view.UnitPrice = p.Price
			view.ImageRef = p.ImageRef
			cart.Total += p.Price * int64(item.Quantity)
		}
		cart.Items = append(cart.Items, view)
	}

	return cart, nil
}

// CommitCart converts the cart's reservations into a sale. The stock was
// already consumed at reservation time, so the ledger is not touched; the
// cart is simply cleared.
func (s *service) CommitCart(ctx context.Context, customerID string) error {
	unlock := s.lockCustomer(customerID)
	defer unlock()

	items, err := s.store.GetLineItems(ctx, customerID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("commit cart %s: %w", customerID, ErrCartNotFound)
	}

	if err := s.store.Clear(ctx, customerID); err != nil {
		return fmt.Errorf("failed to clear cart %s: %w", customerID, err)
	}

	s.logger.Info("cart committed",
		slog.String("customer_id", customerID),
		slog.Int("items", len(items)),
	)

	s.publish(ctx, broker.CartCommittedEvent, &api.CartEvent{
		CustomerID: customerID,
		Items:      items,
		OccurredAt: time.Now(),
	})

	return nil
}

// AbandonCart releases every line item exactly like RemoveItem. Called on
// session expiry; a second delivery finds an empty cart and is a no-op.
func (s *service) AbandonCart(ctx context.Context, customerID string) error {
	unlock := s.lockCustomer(customerID)
	defer unlock()

	items, err := s.store.GetLineItems(ctx, customerID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		if err := s.release(ctx, customerID, item); err != nil {
			return fmt.Errorf("failed to release item %s: %w", item.ID, err)
		}
	}

	s.logger.Info("cart abandoned",
		slog.String("customer_id", customerID),
		slog.Int("items", len(items)),
	)

	s.publish(ctx, broker.CartAbandonedEvent, &api.CartEvent{
		CustomerID: customerID,
		Items:      items,
		OccurredAt: time.Now(),
	})

	return nil
}

// compensate undoes the stock phase after the cart phase failed. If the
// counter-adjustment fails too, the journal entry stays open for the
// consistency checker; the operation is never silently dropped.
func (s *service) compensate(ctx context.Context, entry *JournalEntry, cause error) error {
	if _, err := s.ledger.Adjust(ctx, entry.ProductID, -entry.Delta); err != nil {
		s.logger.Error("cart write failed and stock compensation failed; left for consistency checker",
			slog.String("journal_id", entry.ID),
			slog.String("product_id", entry.ProductID),
			slog.Int("delta", int(entry.Delta)),
			slog.Any("cart_error", cause),
			slog.Any("ledger_error", err),
		)
		return fmt.Errorf("cart update failed (stock adjustment pending reconciliation): %w", cause)
	}

	s.journal.Close(entry.ID)
	return fmt.Errorf("cart update failed (stock adjustment rolled back): %w", cause)
}

func (s *service) publish(ctx context.Context, event string, payload *api.CartEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.logger.Error("failed to publish event",
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

// lockCustomer serializes mutations of one customer's cart (concurrent
// browser tabs). Locks for different customers are independent.
func (s *service) lockCustomer(customerID string) func() {
	s.custMu.Lock()
	mu, ok := s.locks[customerID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[customerID] = mu
	}
	s.custMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

var _ CartService = (*service)(nil)
