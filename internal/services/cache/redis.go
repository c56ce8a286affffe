package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Egham-7/cascade-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cascade:response:"

// RedisStore is a Redis cache backend. Entries are stored as JSON with a
// server-side TTL matching the policy TTL, so Redis reclaims expired entries
// on its own; the ResponseCache read path still applies the lazy expiry
// check for entries written under a longer previous TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store from a redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client, sharing the connection
// pool with the circuit breaker service.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key, _ string) (models.CacheEntry, bool, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		// A corrupt entry is unrecoverable; drop it and report a miss.
		_ = r.client.Del(ctx, redisKeyPrefix+key).Err()
		return models.CacheEntry{}, false, err
	}
	return entry, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, _ string, entry models.CacheEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key, _ string) error {
	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
