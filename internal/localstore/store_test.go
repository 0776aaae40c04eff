package localstore

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/farmcart-sync/pkg/migrate"
	pkgredis "github.com/angelmondragon/farmcart-sync/pkg/redis"
	"github.com/angelmondragon/farmcart-sync/pkg/redis/redistest"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite3", "up"))
	return NewGormStore(conn)
}

func TestStoreBackendsRoundTrip(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return newSQLiteStore(t) },
		"redis": func(*testing.T) Store {
			return NewRedisStore(pkgredis.NewWithCmdable(redistest.NewMemory()))
		},
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			_, err := store.Get(ctx, KeyCart)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, KeyCart, []byte(`{"a":1}`)))
			require.NoError(t, store.Set(ctx, KeyCart, []byte(`{"a":2}`)))
			got, err := store.Get(ctx, KeyCart)
			require.NoError(t, err)
			require.JSONEq(t, `{"a":2}`, string(got))

			require.NoError(t, store.Set(ctx, KeySavedFarms, []byte(`[]`)))
			require.NoError(t, store.Remove(ctx, KeyCart))
			_, err = store.Get(ctx, KeyCart)
			require.ErrorIs(t, err, ErrNotFound)

			other, err := store.Get(ctx, KeySavedFarms)
			require.NoError(t, err)
			require.Equal(t, `[]`, string(other))

			require.NoError(t, store.Remove(ctx, "never-written"))
		})
	}
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	mem := redistest.NewMemory()
	store := NewRedisStore(pkgredis.NewWithCmdable(mem))
	require.NoError(t, store.Set(context.Background(), KeySavedListings, []byte(`[]`)))

	raw, err := pkgredis.NewWithCmdable(mem).Get(context.Background(), "fc:local:saved_listings")
	require.NoError(t, err)
	require.Equal(t, `[]`, raw)
}

func TestRedisStoreSurfacesBackendErrors(t *testing.T) {
	mem := redistest.NewMemory()
	mem.FailWith = errors.New("connection refused")
	store := NewRedisStore(pkgredis.NewWithCmdable(mem))

	_, err := store.Get(context.Background(), KeyCart)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
