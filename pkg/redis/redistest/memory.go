// Package redistest provides an in-memory stand-in for the go-redis command
// surface used by pkg/redis.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Memory implements redis.Cmdable's subset used by the client. TTLs are ignored.
type Memory struct {
	mu   sync.Mutex
	data map[string]string

	// FailWith, when set, is returned by every command.
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Ping(context.Context) *redis.StatusCmd {
	if m.FailWith != nil {
		return redis.NewStatusResult("", m.FailWith)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (m *Memory) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if m.FailWith != nil {
		return redis.NewStatusResult("", m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = asString(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *Memory) Get(_ context.Context, key string) *redis.StringCmd {
	if m.FailWith != nil {
		return redis.NewStringResult("", m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *Memory) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if m.FailWith != nil {
		return redis.NewBoolResult(false, m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = asString(value)
	return redis.NewBoolResult(true, nil)
}

func (m *Memory) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if m.FailWith != nil {
		return redis.NewIntResult(0, m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			removed++
		}
		delete(m.data, key)
	}
	return redis.NewIntResult(removed, nil)
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func asString(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}
