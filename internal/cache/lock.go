package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cropradar/internal/types"
)

const lockPrefix = "cropradar:lock:"

// lockCommands is the subset of *redis.Client used by RedisLock.
type lockCommands interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisLock is a best-effort distributed job lock: the first worker to set
// the key owns it until the TTL expires. Locks are never released early, so a
// retried invocation inside the same window is skipped.
type RedisLock struct {
	client lockCommands
}

// NewRedisLock creates a lock backed by client.
func NewRedisLock(client lockCommands) *RedisLock {
	return &RedisLock{client: client}
}

// Acquire reports whether workerID now holds lockID.
func (l *RedisLock) Acquire(ctx context.Context, lockID, workerID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+lockID, workerID, ttl).Result()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamCache, "failed to acquire job lock", err)
	}
	return ok, nil
}

// MemoryLock is the single-process equivalent of RedisLock.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock types.Clock
}

// NewMemoryLock creates an in-process lock.
func NewMemoryLock(clock types.Clock) *MemoryLock {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryLock{held: make(map[string]time.Time), clock: clock}
}

// Acquire reports whether lockID was free or expired.
func (l *MemoryLock) Acquire(_ context.Context, lockID, _ string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if until, ok := l.held[lockID]; ok && now.Before(until) {
		return false, nil
	}
	l.held[lockID] = now.Add(ttl)
	return true, nil
}
