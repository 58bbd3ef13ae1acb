package main

import (
	"context"
	"log"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// CachedCatalog wraps a ProductCatalog with a Redis cache-aside layer for
// display data. Cache failures degrade to the backing catalog, never to an
// error.
type CachedCatalog struct {
	catalog ProductCatalog
	cache   *ProductCache
}

func NewCachedCatalog(catalog ProductCatalog, cache *ProductCache) *CachedCatalog {
	return &CachedCatalog{
		catalog: catalog,
		cache:   cache,
	}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id string) (*api.Product, error) {
	cached, err := c.cache.GetProduct(ctx, id)
	if err != nil {
		log.Printf("cache error (will query catalog): %v", err)
	} else if cached != nil {
		return cached, nil
	}

	p, err := c.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	// best-effort populate
	if err := c.cache.SetProduct(ctx, p); err != nil {
		log.Printf("failed to populate cache for product %s: %v", id, err)
	}

	return p, nil
}

func (c *CachedCatalog) GetProducts(ctx context.Context, ids []string) ([]*api.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cached, err := c.cache.GetProducts(ctx, ids)
	if err != nil {
		log.Printf("cache error (will query catalog): %v", err)
		cached = make(map[string]*api.Product)
	}

	var missedIDs []string
	for _, id := range ids {
		if _, found := cached[id]; !found {
			missedIDs = append(missedIDs, id)
		}
	}

	var fetched map[string]*api.Product
	if len(missedIDs) > 0 {
		fromCatalog, err := c.catalog.GetProducts(ctx, missedIDs)
		if err != nil {
			return nil, err
		}

		fetched = make(map[string]*api.Product, len(fromCatalog))
		for _, p := range fromCatalog {
			fetched[p.ID] = p
			if err := c.cache.SetProduct(ctx, p); err != nil {
				log.Printf("failed to populate cache for product %s: %v", p.ID, err)
			}
		}
	}

	products := make([]*api.Product, 0, len(ids))
	for _, id := range ids {
		if p, found := cached[id]; found {
			products = append(products, p)
		} else if p, found := fetched[id]; found {
			products = append(products, p)
		}
	}

	return products, nil
}

// ListProducts bypasses the cache; the checker uses it for full scans.
func (c *CachedCatalog) ListProducts(ctx context.Context) ([]*api.Product, error) {
	return c.catalog.ListProducts(ctx)
}

var _ ProductCatalog = (*CachedCatalog)(nil)
