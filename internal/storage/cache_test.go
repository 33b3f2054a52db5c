package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsjns/bearlink-sub000/internal/models"
)

type fakeCache struct {
	entries map[string]string
	err     error
	gets    int
	sets    int
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.gets++
	if f.err != nil {
		return "", f.err
	}
	val, ok := f.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	if f.err != nil {
		return f.err
	}
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

// countingStore wraps the memory store to observe registry round trips.
type countingStore struct {
	Store
	finds int
}

func (c *countingStore) FindBySlug(ctx context.Context, slug string) (models.Link, error) {
	c.finds++
	return c.Store.FindBySlug(ctx, slug)
}

func newCachedFixture(t *testing.T) (*CachedStore, *countingStore, *fakeCache, models.Link) {
	t.Helper()
	inner := &countingStore{Store: &MemoryStore{}}
	cache := newFakeCache()
	cached := NewCachedStore(inner, cache, time.Minute)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	link := models.Link{
		ShortID:      "abc123XYZ0",
		CustomAlias:  "promo",
		OriginalURL:  "https://example.com?q=1",
		RedirectType: 302,
		ExpiresAt:    &expiry,
		PasswordHash: "$2a$10$hash",
		UserID:       "u1",
	}
	require.NoError(t, cached.Create(context.Background(), &link))
	return cached, inner, cache, link
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, inner, cache, link := newCachedFixture(t)

	first, err := cached.FindBySlug(ctx, "abc123XYZ0")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.finds)
	assert.Equal(t, 1, cache.sets)

	second, err := cached.FindBySlug(ctx, "abc123XYZ0")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.finds, "second lookup must be served from cache")

	assert.Equal(t, first.OriginalURL, second.OriginalURL)
	assert.Equal(t, first.PasswordHash, second.PasswordHash, "password hash must survive the cache round trip")
	require.NotNil(t, second.ExpiresAt)
	assert.True(t, link.ExpiresAt.Equal(*second.ExpiresAt), "timestamps must be reconstructed")
}

func TestCachedStoreMissOnUnknownSlug(t *testing.T) {
	cached, _, _, _ := newCachedFixture(t)
	_, err := cached.FindBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCachedStoreFailOpen(t *testing.T) {
	ctx := context.Background()
	cached, inner, cache, _ := newCachedFixture(t)
	cache.err = errors.New("connection refused")

	link, err := cached.FindBySlug(ctx, "abc123XYZ0")
	require.NoError(t, err, "a broken cache must never fail the lookup")
	assert.Equal(t, "https://example.com?q=1", link.OriginalURL)
	assert.Equal(t, 1, inner.finds)
}

func TestCachedStoreCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	cached, inner, cache, _ := newCachedFixture(t)
	cache.entries["link:abc123XYZ0"] = "{not json"

	link, err := cached.FindBySlug(ctx, "abc123XYZ0")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com?q=1", link.OriginalURL)
	assert.Equal(t, 1, inner.finds)
}

func TestCachedStoreInvalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("update purges both keys", func(t *testing.T) {
		cached, _, cache, link := newCachedFixture(t)
		_, err := cached.FindBySlug(ctx, "promo")
		require.NoError(t, err)

		newURL := "https://changed.example.com"
		_, err = cached.UpdateByOwner(ctx, link.ID, "u1", models.LinkPatch{OriginalURL: &newURL})
		require.NoError(t, err)
		assert.Contains(t, cache.deleted, "link:abc123XYZ0")
		assert.Contains(t, cache.deleted, "link:promo")

		fresh, err := cached.FindBySlug(ctx, "promo")
		require.NoError(t, err)
		assert.Equal(t, newURL, fresh.OriginalURL)
	})

	t.Run("alias change purges the old alias key", func(t *testing.T) {
		cached, _, cache, link := newCachedFixture(t)
		_, err := cached.FindBySlug(ctx, "promo")
		require.NoError(t, err)

		alias := "fresh-promo"
		_, err = cached.UpdateByOwner(ctx, link.ID, "u1", models.LinkPatch{CustomAlias: &alias})
		require.NoError(t, err)
		assert.Contains(t, cache.deleted, "link:promo")

		_, err = cached.FindBySlug(ctx, "promo")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("delete purges and stops resolution", func(t *testing.T) {
		cached, _, cache, link := newCachedFixture(t)
		_, err := cached.FindBySlug(ctx, "abc123XYZ0")
		require.NoError(t, err)

		_, err = cached.DeleteByOwner(ctx, link.ID, "u1")
		require.NoError(t, err)
		assert.Contains(t, cache.deleted, "link:abc123XYZ0")
		assert.Contains(t, cache.deleted, "link:promo")

		_, err = cached.FindBySlug(ctx, "abc123XYZ0")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
