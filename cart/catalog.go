package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// MemoryCatalog is a static in-memory product catalog for tests and local
// development.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]*api.Product
}

func NewMemoryCatalog(products ...*api.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]*api.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *MemoryCatalog) GetProduct(ctx context.Context, id string) (*api.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("catalog: %s: %w", id, ErrProductNotFound)
	}

	cp := *p
	return &cp, nil
}

func (c *MemoryCatalog) GetProducts(ctx context.Context, ids []string) ([]*api.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var res []*api.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			cp := *p
			res = append(res, &cp)
		}
	}

	return res, nil
}

func (c *MemoryCatalog) ListProducts(ctx context.Context) ([]*api.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var res []*api.Product
	for _, p := range c.products {
		cp := *p
		res = append(res, &cp)
	}

	return res, nil
}

var _ ProductCatalog = (*MemoryCatalog)(nil)
