package main

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger keeps the available-quantity counters in memory, one mutex per
// product so adjustments to different products never block each other. Used
// by tests and local development; production wiring uses PostgresStore.
type MemoryLedger struct {
	mu       sync.RWMutex // guards the map, not the counters
	counters map[string]*stockCounter
}

type stockCounter struct {
	mu        sync.Mutex
	available int32
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counters: make(map[string]*stockCounter)}
}

// SetStock creates or resets a product's counter. Called at product creation
// time, which is external to the core.
func (l *MemoryLedger) SetStock(productID string, quantity int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[productID] = &stockCounter{available: quantity}
}

func (l *MemoryLedger) GetAvailable(ctx context.Context, productID string) (int32, error) {
	c, err := l.counter(productID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available, nil
}

func (l *MemoryLedger) Adjust(ctx context.Context, productID string, delta int32) (int32, error) {
	c, err := l.counter(productID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.available+delta < 0 {
		return 0, fmt.Errorf("adjust %s by %d: %w", productID, delta, ErrInsufficientStock)
	}

	c.available += delta
	return c.available, nil
}

func (l *MemoryLedger) counter(productID string) (*stockCounter, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.counters[productID]
	if !ok {
		return nil, fmt.Errorf("ledger: %s: %w", productID, ErrProductNotFound)
	}
	return c, nil
}

var _ StockLedger = (*MemoryLedger)(nil)
