package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	pkgredis "github.com/angelmondragon/farmcart-sync/pkg/redis"
	"github.com/google/uuid"
)

const defaultLockTTL = 5 * time.Minute

// Lock guards a feature against concurrent sync runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLock is an in-process, non-blocking lock.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock using Redis SETNX + TTL so that several processes
// sharing one Redis-backed store do not sync the same feature at once.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.owner = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// LocalLocks returns one in-process lock per feature.
func LocalLocks() map[enums.SyncFeature]Lock {
	return map[enums.SyncFeature]Lock{
		enums.SyncFeatureCart:          &LocalLock{},
		enums.SyncFeatureSavedListings: &LocalLock{},
		enums.SyncFeatureSavedFarms:    &LocalLock{},
	}
}

// RedisLocks returns one Redis lock per feature, keyed by owner (the device or user).
func RedisLocks(client *pkgredis.Client, owner string, ttl time.Duration) (map[enums.SyncFeature]Lock, error) {
	locks := make(map[enums.SyncFeature]Lock, 3)
	for _, feature := range []enums.SyncFeature{
		enums.SyncFeatureCart,
		enums.SyncFeatureSavedListings,
		enums.SyncFeatureSavedFarms,
	} {
		lock, err := NewRedisLock(client, client.LockKey(owner, feature.String()), ttl)
		if err != nil {
			return nil, err
		}
		locks[feature] = lock
	}
	return locks, nil
}
