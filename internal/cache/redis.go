package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/config"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/redis/go-redis/v9"
)

var (
	// INCR, then start the expiry only for a fresh counter so the window is fixed.
	incrementWithTTLScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

	deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

type redisCache struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedisCache connects to Redis and checks the connection.
func NewRedisCache(cfg config.RedisConfig, l logger.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	l.Info("Redis connection established",
		logger.String("addr", cfg.Addr),
		logger.Int("db", cfg.DB))

	return newRedisCache(client, l), nil
}

func newRedisCache(client *redis.Client, l logger.Logger) *redisCache {
	return &redisCache{client: client, logger: l}
}

// Get gets value by key
func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		r.logger.Error("Failed to get cache value",
			logger.String("key", key),
			logger.Error(err))
		return "", fmt.Errorf("failed to get cache value: %w", err)
	}

	return val, nil
}

// Delete deletes value by key
func (r *redisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete cache value",
			logger.String("key", key),
			logger.Error(err))
		return fmt.Errorf("failed to delete cache value: %w", err)
	}

	return nil
}

// SetNX sets value only if key doesn't exist
func (r *redisCache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		r.logger.Error("Failed to set cache value with SetNX",
			logger.String("key", key),
			logger.Error(err))
		return false, fmt.Errorf("failed to set cache value with SetNX: %w", err)
	}

	return ok, nil
}

func (r *redisCache) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteIfEqualsScript.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		r.logger.Error("Failed to delete cache value by owner",
			logger.String("key", key),
			logger.Error(err))
		return false, fmt.Errorf("failed to delete cache value: %w", err)
	}

	return n > 0, nil
}

func (r *redisCache) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrementWithTTLScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		r.logger.Error("Failed to increment with TTL",
			logger.String("key", key),
			logger.Error(err))
		return 0, fmt.Errorf("failed to increment with TTL: %w", err)
	}

	return n, nil
}

// Close closes redis connection
func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", logger.Error(err))
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}

	r.logger.Info("Redis connection closed")
	return nil
}

// Ping return error if no connection to redis
func (r *redisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Error("Redis ping failed", logger.Error(err))
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}
