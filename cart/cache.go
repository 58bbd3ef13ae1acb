package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// ProductCache holds catalog display data in Redis. Product attributes change
// rarely, so a short TTL is enough; stock counters are never cached.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductCache(addr string, ttl time.Duration) (*ProductCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ProductCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func (c *ProductCache) Close() error {
	return c.client.Close()
}

// GetProduct returns (nil, nil) on a cache miss.
func (c *ProductCache) GetProduct(ctx context.Context, id string) (*api.Product, error) {
	key := fmt.Sprintf("product:%s", id)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var p api.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}

	return &p, nil
}

func (c *ProductCache) SetProduct(ctx context.Context, p *api.Product) error {
	key := fmt.Sprintf("product:%s", p.ID)

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// GetProducts batch-reads from the cache; missing IDs are simply absent from
// the result map.
func (c *ProductCache) GetProducts(ctx context.Context, ids []string) (map[string]*api.Product, error) {
	if len(ids) == 0 {
		return make(map[string]*api.Product), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf("product:%s", id)
	}

	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget error: %w", err)
	}

	products := make(map[string]*api.Product)
	for i, result := range results {
		if result == nil {
			continue
		}

		data, ok := result.(string)
		if !ok {
			continue
		}

		var p api.Product
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}

		products[ids[i]] = &p
	}

	return products, nil
}

func (c *ProductCache) InvalidateProduct(ctx context.Context, id string) error {
	key := fmt.Sprintf("product:%s", id)
	return c.client.Del(ctx, key).Err()
}
