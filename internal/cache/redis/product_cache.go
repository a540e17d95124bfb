package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mazadapp/mazad/internal/domain"
)

// ProductCache implements domain.ProductCache: product list pages are cached
// as JSON with a short TTL and dropped wholesale on any product mutation.
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewProductCache creates a ProductCache with the given TTL. A zero TTL
// disables expiry (entries live until invalidated).
func NewProductCache(c *Client, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: c.Underlying(), ttl: ttl}
}

func listKey(opts domain.ListOpts) string {
	return fmt.Sprintf("products:list:%d:%d", opts.Limit, opts.Offset)
}

// GetList returns the cached page for opts and whether it was present.
func (pc *ProductCache) GetList(ctx context.Context, opts domain.ListOpts) ([]domain.Product, bool, error) {
	data, err := pc.rdb.Get(ctx, listKey(opts)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get product list: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		// A corrupt entry is treated as a miss; the next SetList repairs it.
		return nil, false, nil
	}
	return products, true, nil
}

// SetList stores the page for opts.
func (pc *ProductCache) SetList(ctx context.Context, opts domain.ListOpts, products []domain.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("redis: marshal product list: %w", err)
	}
	if err := pc.rdb.Set(ctx, listKey(opts), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set product list: %w", err)
	}
	return nil
}

// Invalidate drops every cached list page.
func (pc *ProductCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := pc.rdb.Scan(ctx, cursor, "products:list:*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis: scan product list keys: %w", err)
		}
		if len(keys) > 0 {
			if err := pc.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis: delete product list keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Compile-time interface check.
var _ domain.ProductCache = (*ProductCache)(nil)
