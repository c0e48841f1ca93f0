package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/getf1tickets/order-service/internal/entity"
	"github.com/getf1tickets/order-service/internal/usecase"
)

// RedisCatalogCache is a read-through cache in front of the product
// catalog. Cache errors degrade to the inner lookup; they never fail an
// order.
type RedisCatalogCache struct {
	inner usecase.ProductCatalog
	rdb   *redis.Client
	ttl   time.Duration
}

func NewRedisCatalogCache(inner usecase.ProductCatalog, rdb *redis.Client, ttl time.Duration) *RedisCatalogCache {
	return &RedisCatalogCache{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *RedisCatalogCache) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "product:" + id
	}

	found := make([]domain.Product, 0, len(ids))
	var misses []string
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		misses = ids
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				misses = append(misses, ids[i])
				continue
			}
			var p domain.Product
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				misses = append(misses, ids[i])
				continue
			}
			found = append(found, p)
		}
	}
	if len(misses) == 0 {
		return found, nil
	}

	fetched, err := c.inner.FindByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, p := range fetched {
		if raw, err := json.Marshal(p); err == nil {
			_ = c.rdb.Set(ctx, "product:"+p.ID, raw, c.ttl).Err()
		}
	}
	return append(found, fetched...), nil
}

var _ usecase.ProductCatalog = (*RedisCatalogCache)(nil)
