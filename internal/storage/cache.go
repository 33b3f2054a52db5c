package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vrsjns/bearlink-sub000/internal/logger"
	"github.com/vrsjns/bearlink-sub000/internal/models"
)

// ErrCacheMiss is the only cache outcome callers branch on; every other
// cache failure is logged and treated the same way.
var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// CachedStore is a read-through, invalidate-on-write decorator over a Store.
// The registry stays the store of record: any cache error downgrades to a
// miss or a no-op, never to a failed request.
type CachedStore struct {
	Store
	cache Cache
	ttl   time.Duration
}

func NewCachedStore(inner Store, cache Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: inner, cache: cache, ttl: ttl}
}

// cachedLink re-exposes the password hash, which the Link JSON encoding
// hides. A password-protected link served from cache must still gate.
type cachedLink struct {
	models.Link
	PasswordHash string `json:"passwordHash,omitempty"`
}

func cacheKey(slug string) string {
	return "link:" + slug
}

func (store *CachedStore) FindBySlug(ctx context.Context, slug string) (models.Link, error) {
	key := cacheKey(slug)

	if raw, err := store.cache.Get(ctx, key); err == nil {
		var entry cachedLink
		if jsonErr := json.Unmarshal([]byte(raw), &entry); jsonErr == nil {
			entry.Link.PasswordHash = entry.PasswordHash
			return entry.Link, nil
		}
		logger.Log.Warnw("corrupt cache entry, falling back to registry", "key", key)
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.Log.Warnw("cache read failed", "key", key, "error", err)
	}

	link, err := store.Store.FindBySlug(ctx, slug)
	if err != nil {
		return models.Link{}, err
	}

	if data, jsonErr := json.Marshal(cachedLink{Link: link, PasswordHash: link.PasswordHash}); jsonErr == nil {
		if setErr := store.cache.Set(ctx, key, string(data), store.ttl); setErr != nil {
			logger.Log.Warnw("cache write failed", "key", key, "error", setErr)
		}
	}
	return link, nil
}

func (store *CachedStore) UpdateByOwner(ctx context.Context, id int64, ownerID string, patch models.LinkPatch) (models.Link, error) {
	// Purge keys for the pre-update record too: an alias change must not
	// leave the old alias serving a stale copy.
	if old, err := store.Store.FindByOwner(ctx, id, ownerID); err == nil {
		store.invalidate(ctx, old)
	}

	link, err := store.Store.UpdateByOwner(ctx, id, ownerID, patch)
	if err != nil {
		return models.Link{}, err
	}
	store.invalidate(ctx, link)
	return link, nil
}

func (store *CachedStore) DeleteByOwner(ctx context.Context, id int64, ownerID string) (models.Link, error) {
	link, err := store.Store.DeleteByOwner(ctx, id, ownerID)
	if err != nil {
		return models.Link{}, err
	}
	store.invalidate(ctx, link)
	return link, nil
}

// invalidate purges both addressable keys; either one can resolve the record.
func (store *CachedStore) invalidate(ctx context.Context, link models.Link) {
	keys := []string{cacheKey(link.ShortID)}
	if link.CustomAlias != "" {
		keys = append(keys, cacheKey(link.CustomAlias))
	}
	if err := store.cache.Del(ctx, keys...); err != nil {
		logger.Log.Warnw("cache invalidation failed", "keys", keys, "error", err)
	}
}
