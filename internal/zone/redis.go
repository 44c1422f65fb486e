package zone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where zones are stored when no key is given.
const DefaultRedisKey = "drone_defense:zones"

// maxApplyRetries bounds optimistic-lock retries in Apply.
const maxApplyRetries = 5

// RedisStore keeps zones in a single Redis key so they survive restarts of
// the data server.
type RedisStore struct {
	redis    *redis.Client
	key      string
	defaults Zones
}

// NewRedisStore creates a Redis-backed store. defaults is returned by Load
// until the first Apply writes the key.
func NewRedisStore(redisClient *redis.Client, key string, defaults Zones) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		redis:    redisClient,
		key:      key,
		defaults: defaults.Clone(),
	}
}

// Load retrieves the current zones.
func (rs *RedisStore) Load(ctx context.Context) (Zones, error) {
	return rs.get(ctx, rs.redis)
}

// Apply performs a read-modify-write of the zones under WATCH, retrying when
// another writer got there first.
func (rs *RedisStore) Apply(ctx context.Context, u Update) (Zones, error) {
	var result Zones

	txf := func(tx *redis.Tx) error {
		current, err := rs.get(ctx, tx)
		if err != nil {
			return err
		}

		next := u.apply(current)
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal zones: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rs.key, data, 0)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxApplyRetries; i++ {
		err := rs.redis.Watch(ctx, txf, rs.key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Zones{}, fmt.Errorf("failed to update zones in Redis: %w", err)
	}

	return Zones{}, fmt.Errorf("failed to update zones in Redis: too much contention")
}

// Reset removes the stored zones so Load falls back to the defaults.
func (rs *RedisStore) Reset(ctx context.Context) error {
	return rs.redis.Del(ctx, rs.key).Err()
}

// getter is the slice of the Redis API shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (rs *RedisStore) get(ctx context.Context, c getter) (Zones, error) {
	data, err := c.Get(ctx, rs.key).Result()
	if err == redis.Nil {
		return rs.defaults.Clone(), nil
	}
	if err != nil {
		return Zones{}, fmt.Errorf("failed to get zones from Redis: %w", err)
	}

	var z Zones
	if err := json.Unmarshal([]byte(data), &z); err != nil {
		return Zones{}, fmt.Errorf("failed to unmarshal zones: %w", err)
	}
	return z, nil
}
