package throttle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as hashes so every server instance sees the same
// failure counts. Keys expire after the cooldown, which doubles as eviction.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "storefront:login",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(vals) == 0 {
		return Record{}, false, nil
	}

	failures, err := strconv.Atoi(vals["failures"])
	if err != nil {
		return Record{}, false, fmt.Errorf("redis record %s: bad failures: %w", key, err)
	}
	lastMillis, err := strconv.ParseInt(vals["last_failure"], 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("redis record %s: bad last_failure: %w", key, err)
	}

	return Record{
		Key:         key,
		Failures:    failures,
		LastFailure: time.UnixMilli(lastMillis),
	}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, rec Record, ttl time.Duration) error {
	k := s.key(rec.Key)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, "failures", rec.Failures, "last_failure", rec.LastFailure.UnixMilli())
	if ttl > 0 {
		pipe.PExpire(ctx, k, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
