package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	pkgredis "github.com/angelmondragon/farmcart-sync/pkg/redis"
	"github.com/angelmondragon/farmcart-sync/pkg/redis/redistest"
	"github.com/stretchr/testify/require"
)

func TestRedisLockIsExclusiveAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client := pkgredis.NewWithCmdable(redistest.NewMemory())

	first, err := NewRedisLock(client, "fc:lock:device:cart", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, "fc:lock:device:cart", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// releasing a lock we never owned leaves the holder alone
	require.NoError(t, second.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLocksPerFeature(t *testing.T) {
	ctx := context.Background()
	client := pkgredis.NewWithCmdable(redistest.NewMemory())
	locks, err := RedisLocks(client, "device-1", 0)
	require.NoError(t, err)
	require.Len(t, locks, 3)

	ok, err := locks[enums.SyncFeatureCart].Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = locks[enums.SyncFeatureSavedFarms].Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Second)
	require.Error(t, err)
	_, err = NewRedisLock(pkgredis.NewWithCmdable(redistest.NewMemory()), "", time.Second)
	require.Error(t, err)
}

func TestLocalLockTryLock(t *testing.T) {
	ctx := context.Background()
	lock := &LocalLock{}
	ok, _ := lock.Acquire(ctx)
	require.True(t, ok)
	ok, _ = lock.Acquire(ctx)
	require.False(t, ok)
	require.NoError(t, lock.Release(ctx))
	ok, _ = lock.Acquire(ctx)
	require.True(t, ok)
}
