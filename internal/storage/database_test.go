package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsjns/bearlink-sub000/internal/config"
	"github.com/vrsjns/bearlink-sub000/internal/models"
)

// newDatabaseFixture connects to the database named by TEST_DATABASE_DSN and
// skips the test when none is configured.
func newDatabaseFixture(t *testing.T) *DatabaseStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}
	config.Current.DatabaseDSN = dsn

	store := &DatabaseStore{}
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() {
		store.DB.Exec(`DELETE FROM links WHERE user_id LIKE 'test-%'`)
		store.DB.Close()
	})
	return store
}

func TestDatabaseStoreAliasCannotShadowShortID(t *testing.T) {
	store := newDatabaseFixture(t)
	ctx := context.Background()

	victim := models.Link{ShortID: "dbvictim00", OriginalURL: "https://example.com", RedirectType: 302, UserID: "test-owner"}
	require.NoError(t, store.Create(ctx, &victim))

	t.Run("on create", func(t *testing.T) {
		hijack := models.Link{ShortID: "dbhijack00", CustomAlias: victim.ShortID, OriginalURL: "https://other.example.com", RedirectType: 302, UserID: "test-other"}
		assert.ErrorIs(t, store.Create(ctx, &hijack), models.ErrAliasTaken)
	})

	t.Run("on update", func(t *testing.T) {
		other := models.Link{ShortID: "dbother000", OriginalURL: "https://example.com/x", RedirectType: 302, UserID: "test-other"}
		require.NoError(t, store.Create(ctx, &other))

		alias := victim.ShortID
		_, err := store.UpdateByOwner(ctx, other.ID, other.UserID, models.LinkPatch{CustomAlias: &alias})
		assert.ErrorIs(t, err, models.ErrAliasTaken)
	})

	t.Run("resolution stays unambiguous", func(t *testing.T) {
		got, err := store.FindBySlug(ctx, victim.ShortID)
		require.NoError(t, err)
		assert.Equal(t, victim.ID, got.ID)
		assert.Equal(t, victim.OriginalURL, got.OriginalURL)
	})
}

func TestDatabaseStoreIncrementClicks(t *testing.T) {
	store := newDatabaseFixture(t)
	ctx := context.Background()

	link := models.Link{ShortID: "dbclicks00", OriginalURL: "https://example.com", RedirectType: 302, UserID: "test-owner"}
	require.NoError(t, store.Create(ctx, &link))

	require.NoError(t, store.IncrementClicks(ctx, link.ShortID))
	got, err := store.FindBySlug(ctx, link.ShortID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Clicks)

	assert.ErrorIs(t, store.IncrementClicks(ctx, "dbmissing0"), models.ErrNotFound)
}
