package treatments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/esthetix/clinic-portal/pkg/logging"
)

const (
	catalogCacheKey = "treatments:catalog"
	catalogCacheTTL = 5 * time.Minute
)

// Catalog serves the treatment list through a short-lived Redis cache so the
// public site and the chat assistant don't hammer the table. A nil or
// unreachable Redis degrades to reading straight from the store.
type Catalog struct {
	store  *Store
	redis  *redis.Client
	logger *logging.Logger
}

// NewCatalog wraps the store with the cache. redis may be nil.
func NewCatalog(store *Store, client *redis.Client, logger *logging.Logger) *Catalog {
	if store == nil {
		panic("treatments: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Catalog{store: store, redis: client, logger: logger}
}

// List returns the catalog, from cache when fresh.
func (c *Catalog) List(ctx context.Context) ([]Treatment, error) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, catalogCacheKey).Bytes()
		if err == nil {
			var cached []Treatment
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			c.logger.Error("malformed treatment cache entry, refreshing", "error", err)
		} else if err != redis.Nil {
			c.logger.Error("treatment cache read failed", "error", err)
		}
	}

	list, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		data, err := json.Marshal(list)
		if err == nil {
			if err := c.redis.Set(ctx, catalogCacheKey, data, catalogCacheTTL).Err(); err != nil {
				c.logger.Error("treatment cache write failed", "error", err)
			}
		}
	}
	return list, nil
}

// Get loads one treatment by page name, bypassing the cache.
func (c *Catalog) Get(ctx context.Context, pageName string) (Treatment, error) {
	return c.store.Get(ctx, pageName)
}

// Put upserts a treatment and invalidates the cached catalog.
func (c *Catalog) Put(ctx context.Context, t Treatment) error {
	if err := c.store.Put(ctx, t); err != nil {
		return err
	}
	if c.redis != nil {
		if err := c.redis.Del(ctx, catalogCacheKey).Err(); err != nil {
			return fmt.Errorf("treatments: invalidate cache: %w", err)
		}
	}
	return nil
}
