package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps one hash per session id. The hash expires ttl after its
// last write.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Backend = (*RedisBackend)(nil)

func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) Get(ctx context.Context, sid, key string) (string, bool, error) {
	value, err := b.client.HGet(ctx, redisKey(sid), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis hget")
	}
	return value, true, nil
}

func (b *RedisBackend) SetMany(ctx context.Context, sid string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	key := redisKey(sid)
	fields := make(map[string]interface{}, len(values))
	for field, value := range values {
		fields[field] = value
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if b.ttl > 0 {
			pipe.Expire(ctx, key, b.ttl)
		}
		return nil
	})
	return errors.Wrap(err, "redis hset")
}

func (b *RedisBackend) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(b.client.HDel(ctx, redisKey(sid), keys...).Err(), "redis hdel")
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func redisKey(sid string) string {
	return fmt.Sprintf("dashboard_storage:%s", sid)
}
