package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"cropradar/internal/types"
)

// ClientOptions configures the Redis connection.
type ClientOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps the go-redis client with health checking.
type Client struct {
	*redis.Client
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// redisCommands is the subset of *redis.Client used by RedisStore.
type redisCommands interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// BreakerSettings controls when the store stops calling Redis.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// RedisStore is a Store backed by Redis. Calls go through a circuit breaker
// so a failing Redis costs one fast error instead of a timeout per request.
type RedisStore struct {
	client  redisCommands
	codec   *codec
	breaker *gobreaker.CircuitBreaker[map[string]Entry]
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. Any *redis.Client satisfies client.
func NewRedisStore(client redisCommands, settings BreakerSettings) *RedisStore {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := settings.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RedisStore{
		client: client,
		codec:  newCodec(),
		breaker: gobreaker.NewCircuitBreaker[map[string]Entry](gobreaker.Settings{
			Name:        "baseline-cache",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				// A canceled request says nothing about Redis health.
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (s *RedisStore) Name() string { return "redis" }

// GetMany reads keys with a single MGET. Entries that fail to decode are
// treated as misses and get overwritten on the next fill.
func (s *RedisStore) GetMany(ctx context.Context, keys []string) (map[string]Entry, error) {
	if len(keys) == 0 {
		return map[string]Entry{}, nil
	}
	out, err := s.breaker.Execute(func() (map[string]Entry, error) {
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		found := make(map[string]Entry, len(keys))
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok || i >= len(keys) {
				continue
			}
			entry, err := s.codec.decode([]byte(raw))
			if err != nil {
				continue
			}
			found[keys[i]] = entry
		}
		return found, nil
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCache, "baseline cache read failed", err)
	}
	return out, nil
}

// SetMany writes all entries in one pipeline.
func (s *RedisStore) SetMany(ctx context.Context, entries map[string]Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(entries))
	for k, e := range entries {
		data, err := s.codec.encode(e)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode baseline entry", err)
		}
		encoded[k] = data
	}

	_, err := s.breaker.Execute(func() (map[string]Entry, error) {
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, data := range encoded {
				pipe.Set(ctx, k, data, ttl)
			}
			return nil
		})
		return nil, err
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamCache, "baseline cache write failed", err)
	}
	return nil
}

// BreakerState reports the breaker state for health output.
func (s *RedisStore) BreakerState() string {
	return s.breaker.State().String()
}
