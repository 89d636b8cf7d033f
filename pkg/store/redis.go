package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua scripts for token-owned keys. Both check the stored value before acting
// so only the owner of a token can release or extend.
var (
	compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

	compareAndExpireScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// RedisKV implements KV on a redis connection.
type RedisKV struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisKV wraps an existing redis client.
func NewRedisKV(client redis.UniversalClient, logger *slog.Logger) *RedisKV {
	return &RedisKV{
		client: client,
		logger: logger.With("module", "redis_store"),
	}
}

// NewRedisKVFromURL connects using a redis:// URL.
func NewRedisKVFromURL(url string, logger *slog.Logger) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewRedisKV(redis.NewClient(opts), logger), nil
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}

	return value, true, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (s *RedisKV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}

	return ok, nil
}

func (s *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire %s: %w", key, err)
	}

	return ok, nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

func (s *RedisKV) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-delete %s: %w", key, err)
	}

	return deleted == 1, nil
}

func (s *RedisKV) CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	extended, err := compareAndExpireScript.Run(ctx, s.client, []string{key}, expected, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-expire %s: %w", key, err)
	}

	return extended == 1, nil
}

func (s *RedisKV) ListPush(ctx context.Context, key, value string) error {
	err := s.client.RPush(ctx, key, value).Err()
	if err != nil {
		return fmt.Errorf("redis rpush %s: %w", key, err)
	}

	return nil
}

func (s *RedisKV) ListPop(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.LPop(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("redis lpop %s: %w", key, err)
	}

	return value, true, nil
}

func (s *RedisKV) ListLen(ctx context.Context, key string) (int64, error) {
	length, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w", key, err)
	}

	return length, nil
}

func (s *RedisKV) ListAll(ctx context.Context, key string) ([]string, error) {
	values, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}

	return values, nil
}

func (s *RedisKV) Close() error {
	return s.client.Close()
}
