package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache is a read-through Redis cache in front of a Store. Misses are not
// cached, so a newly seeded code becomes visible on the next lookup.
type Cache struct {
	store  Store
	client RedisClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCache(store Store, client RedisClient, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, client: client, ttl: ttl, prefix: "disputeflow:catalog", logger: logger}
}

func (c *Cache) entryKey(kind Kind, code string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, kind, code)
}

func (c *Cache) listKey(kind Kind) string {
	return fmt.Sprintf("%s:%s:_all", c.prefix, kind)
}

func (c *Cache) Find(ctx context.Context, kind Kind, code string) (Entry, error) {
	key := c.entryKey(kind, code)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e Entry
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil {
			return e, nil
		}
		c.warn(ctx, "find", key, errors.New("corrupt cache entry"))
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "find", key, err)
	}

	e, err := c.store.Find(ctx, kind, code)
	if err != nil {
		return Entry{}, err
	}
	c.put(ctx, key, e)
	return e, nil
}

func (c *Cache) List(ctx context.Context, kind Kind) ([]Entry, error) {
	key := c.listKey(kind)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []Entry
		if jsonErr := json.Unmarshal(raw, &entries); jsonErr == nil {
			return entries, nil
		}
		c.warn(ctx, "list", key, errors.New("corrupt cache entry"))
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "list", key, err)
	}

	entries, err := c.store.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, entries)
	return entries, nil
}

// Invalidate drops the cached listing and the given codes for kind.
func (c *Cache) Invalidate(ctx context.Context, kind Kind, codes ...string) error {
	keys := make([]string, 0, len(codes)+1)
	keys = append(keys, c.listKey(kind))
	for _, code := range codes {
		keys = append(keys, c.entryKey(kind, code))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate %s: %w", kind, err)
	}
	return nil
}

func (c *Cache) put(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warn(ctx, "put", key, err)
	}
}

func (c *Cache) warn(ctx context.Context, op, key string, err error) {
	c.logger.WarnContext(ctx, "catalog cache degraded",
		"module", "catalog.cache",
		"operation", op,
		"outcome", "fallback",
		"key", key,
		"error", err,
	)
}
