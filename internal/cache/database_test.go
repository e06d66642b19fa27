package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/models"
)

func openCacheTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CacheEntry{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "workspace:abc", []byte("value"), time.Hour))

	value, found, err := store.Get(ctx, "workspace:abc")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), value)

	require.NoError(t, store.Delete(ctx, "workspace:abc"))

	_, found, err = store.Get(ctx, "workspace:abc")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetRespectsExpiry(t *testing.T) {
	db := openCacheTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()

	entry := models.CacheEntry{
		Key:       "stale",
		Value:     []byte("old"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, db.Create(&entry).Error)

	_, found, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(openCacheTestDB(t))
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	db := openCacheTestDB(t)
	store := NewDatabaseStore(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.Create(&models.CacheEntry{Key: "expired", Value: []byte("x"), ExpiresAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "live", Value: []byte("y"), ExpiresAt: now.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&models.CacheEntry{Key: "forever", Value: []byte("z")}).Error)

	purged, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}

func TestNormalizeKeyCollapsesColons(t *testing.T) {
	require.Equal(t, "teamspace:workspace:1", normalizeKey("teamspace::workspace::1"))
	require.Equal(t, "", normalizeKey(""))
}
