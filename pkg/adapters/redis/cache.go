package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultCatalogTTL is how long catalog reads are served from Redis.
const DefaultCatalogTTL = 10 * time.Minute

// CatalogCache is a read-through cache in front of a ports.Commerce.
// Catalog and location reads are cached; cart and customer calls pass through.
// Redis failures degrade to direct reads.
type CatalogCache struct {
	ports.Commerce

	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a CatalogCache.
type CacheOption func(*CatalogCache)

// WithCacheTTL sets the expiration of cached entries.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CatalogCache) {
		c.ttl = ttl
	}
}

// WithCachePrefix sets the key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *CatalogCache) {
		c.prefix = prefix
	}
}

// WithCacheLogger sets the logger for degraded cache operations.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CatalogCache) {
		c.logger = logger
	}
}

// NewCatalogCache wraps inner with a Redis read cache.
func NewCatalogCache(inner ports.Commerce, client backend.UniversalClient, opts ...CacheOption) *CatalogCache {
	c := &CatalogCache{
		Commerce: inner,
		client:   client,
		prefix:   DefaultPrefix,
		ttl:      DefaultCatalogTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CatalogCache) key(parts ...string) string {
	k := c.prefix + "catalog"
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// cached returns the value under key, calling fetch and storing its result on a miss.
// Empty lists are not stored: a pizzeria or product added after the miss must
// show up on the next call, not after the TTL.
func cached[T any](ctx context.Context, c *CatalogCache, key string, fetch func(context.Context) (T, error)) (T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.Warn("Dropping undecodable cache entry", "key", key)
	case !errors.Is(err, backend.Nil):
		c.logger.Warn("Catalog cache read failed", "key", key, "err", err)
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	data, err := json.Marshal(v)
	if err != nil || isEmptyList(data) {
		return v, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Catalog cache write failed", "key", key, "err", err)
	}
	return v, nil
}

func isEmptyList(data []byte) bool {
	return bytes.Equal(data, []byte("[]")) || bytes.Equal(data, []byte("null"))
}

// Products returns the catalog.
func (c *CatalogCache) Products(ctx context.Context) ([]domain.Product, error) {
	return cached(ctx, c, c.key("products"), c.Commerce.Products)
}

// Product returns one catalog entry.
func (c *CatalogCache) Product(ctx context.Context, productID string) (domain.Product, error) {
	return cached(ctx, c, c.key("product", productID), func(ctx context.Context) (domain.Product, error) {
		return c.Commerce.Product(ctx, productID)
	})
}

// Categories returns the menu categories.
func (c *CatalogCache) Categories(ctx context.Context) ([]domain.Category, error) {
	return cached(ctx, c, c.key("categories"), c.Commerce.Categories)
}

// CategoryBySlug finds a category by slug.
func (c *CatalogCache) CategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	return cached(ctx, c, c.key("category-slug", slug), func(ctx context.Context) (domain.Category, error) {
		return c.Commerce.CategoryBySlug(ctx, slug)
	})
}

// ProductsByCategory returns the products of a category.
func (c *CatalogCache) ProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	return cached(ctx, c, c.key("category", categoryID), func(ctx context.Context) ([]domain.Product, error) {
		return c.Commerce.ProductsByCategory(ctx, categoryID)
	})
}

// Locations returns the pizzerias.
func (c *CatalogCache) Locations(ctx context.Context) ([]domain.Location, error) {
	return cached(ctx, c, c.key("locations"), c.Commerce.Locations)
}

// CreateLocation creates a pizzeria and drops the cached list.
func (c *CatalogCache) CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	created, err := c.Commerce.CreateLocation(ctx, loc)
	c.forget(ctx, c.key("locations"))
	return created, err
}

// DeleteLocation removes a pizzeria and drops the cached list.
func (c *CatalogCache) DeleteLocation(ctx context.Context, locationID string) error {
	err := c.Commerce.DeleteLocation(ctx, locationID)
	c.forget(ctx, c.key("locations"))
	return err
}

// Invalidate drops every cached catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.key()+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CatalogCache) forget(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Catalog cache invalidation failed", "key", key, "err", err)
	}
}
