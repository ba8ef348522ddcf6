package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a redis-backed Store (SPEC_FULL.md §2 cache component),
// suited to sharing a cache across multiple runtime processes. Keys are
// namespaced exactly like FSStore's directory layout, joined with ':'.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func redisKey(namespace, stepID, version, key string) string {
	return strings.Join([]string{"qtype", namespace, stepID, version, key}, ":")
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, namespace, stepID, version, key string) ([]byte, bool, error) {
	val, err := s.Client.Get(ctx, redisKey(namespace, stepID, version, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Put implements Store. Entries never expire (§4.F.4 "no auto-eviction"),
// so TTL is 0 (no expiration).
func (s *RedisStore) Put(ctx context.Context, namespace, stepID, version, key string, value []byte) error {
	return s.Client.Set(ctx, redisKey(namespace, stepID, version, key), value, 0).Err()
}
