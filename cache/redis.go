package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEngine implements Engine using Redis, for deployments where
// several orchestrator instances must share one cache. Values are
// serialized as JSON, so Get returns what json.Unmarshal produces
// (maps, slices, float64), not the original Go types.
type RedisEngine struct {
	addr     string
	password string
	db       int
	client   *redis.Client
}

// NewRedisEngine creates a Redis engine for the given address.
func NewRedisEngine(addr, password string, db int) *RedisEngine {
	return &RedisEngine{addr: addr, password: password, db: db}
}

// Connect establishes and verifies the connection to Redis.
func (e *RedisEngine) Connect(ctx context.Context) error {
	e.client = redis.NewClient(&redis.Options{
		Addr:     e.addr,
		Password: e.password,
		DB:       e.db,
	})
	if err := e.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", e.addr, err)
	}
	return nil
}

// Close closes the connection to Redis.
func (e *RedisEngine) Close(_ context.Context) error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Get retrieves an item from the Redis cache.
func (e *RedisEngine) Get(ctx context.Context, key string) (interface{}, bool) {
	if e.client == nil {
		return nil, false
	}
	payload, err := e.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Set stores an item in the Redis cache with a TTL.
func (e *RedisEngine) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if e.client == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return e.client.Set(ctx, key, payload, ttl).Err()
}

// Delete removes an item from the Redis cache.
func (e *RedisEngine) Delete(ctx context.Context, key string) error {
	if e.client == nil {
		return ErrNotConnected
	}
	return e.client.Del(ctx, key).Err()
}

// Flush removes all items from the selected Redis database.
func (e *RedisEngine) Flush(ctx context.Context) error {
	if e.client == nil {
		return ErrNotConnected
	}
	return e.client.FlushDB(ctx).Err()
}

// DeleteMulti removes multiple items from the Redis cache in one call.
func (e *RedisEngine) DeleteMulti(ctx context.Context, keys []string) error {
	if e.client == nil {
		return ErrNotConnected
	}
	if len(keys) == 0 {
		return nil
	}
	return e.client.Del(ctx, keys...).Err()
}

// Healthy reports whether the Redis backend answers a ping.
func (e *RedisEngine) Healthy(ctx context.Context) error {
	if e.client == nil {
		return ErrNotConnected
	}
	if err := e.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrNotConnected, err)
	}
	return nil
}
