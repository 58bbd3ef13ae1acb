package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// MemoryCartStore keeps carts in memory, one mutex per customer. Different
// customers never contend; reads return copies so callers get a snapshot.
type MemoryCartStore struct {
	mu    sync.RWMutex // guards the map, not the carts
	carts map[string]*memoryCart
}

type memoryCart struct {
	mu        sync.Mutex
	items     map[string]*api.LineItem // by cart item ID
	byProduct map[string]string        // product ID -> cart item ID
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]*memoryCart)}
}

func (s *MemoryCartStore) GetLineItems(ctx context.Context, customerID string) ([]*api.LineItem, error) {
	c := s.cart(customerID, false)
	if c == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]*api.LineItem, 0, len(c.items))
	for _, item := range c.items {
		cp := *item
		items = append(items, &cp)
	}
	return items, nil
}

func (s *MemoryCartStore) FindLineItem(ctx context.Context, customerID, cartItemID string) (*api.LineItem, error) {
	c := s.cart(customerID, false)
	if c == nil {
		return nil, fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[cartItemID]
	if !ok {
		return nil, fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
	}

	cp := *item
	return &cp, nil
}

func (s *MemoryCartStore) FindLineItemByProduct(ctx context.Context, customerID, productID string) (*api.LineItem, error) {
	c := s.cart(customerID, false)
	if c == nil {
		return nil, fmt.Errorf("cart %s: product %s: %w", customerID, productID, ErrLineItemNotFound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	itemID, ok := c.byProduct[productID]
	if !ok {
		return nil, fmt.Errorf("cart %s: product %s: %w", customerID, productID, ErrLineItemNotFound)
	}

	cp := *c.items[itemID]
	return &cp, nil
}

func (s *MemoryCartStore) UpsertLineItem(ctx context.Context, customerID, productID string, quantity int32) (*api.LineItem, error) {
	c := s.cart(customerID, true)

	c.mu.Lock()
	defer c.mu.Unlock()

	itemID, exists := c.byProduct[productID]

	if quantity <= 0 {
		if exists {
			delete(c.items, itemID)
			delete(c.byProduct, productID)
		}
		return nil, nil
	}

	now := time.Now()

	if exists {
		item := c.items[itemID]
		item.Quantity = quantity
		item.UpdatedAt = now
		cp := *item
		return &cp, nil
	}

	item := &api.LineItem{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   now,
		UpdatedAt: now,
	}
	c.items[item.ID] = item
	c.byProduct[productID] = item.ID

	cp := *item
	return &cp, nil
}

func (s *MemoryCartStore) DeleteLineItem(ctx context.Context, customerID, cartItemID string) error {
	c := s.cart(customerID, false)
	if c == nil {
		return fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[cartItemID]
	if !ok {
		return fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
	}

	delete(c.items, cartItemID)
	delete(c.byProduct, item.ProductID)
	return nil
}

func (s *MemoryCartStore) Clear(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, customerID)
	return nil
}

func (s *MemoryCartStore) Customers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, c := range s.carts {
		c.mu.Lock()
		empty := len(c.items) == 0
		c.mu.Unlock()
		if !empty {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryCartStore) cart(customerID string, create bool) *memoryCart {
	s.mu.RLock()
	c, ok := s.carts[customerID]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts[customerID]; ok {
		return c
	}
	c = &memoryCart{
		items:     make(map[string]*api.LineItem),
		byProduct: make(map[string]string),
	}
	s.carts[customerID] = c
	return c
}

var _ CartStore = (*MemoryCartStore)(nil)
