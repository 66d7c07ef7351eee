package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cleanops/internal/config"
	"cleanops/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisFieldStateRepository keeps the latest location ping per employee.
type RedisFieldStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisFieldStateRepository(client *redis.Client, ttl time.Duration) *RedisFieldStateRepository {
	return &RedisFieldStateRepository{
		client: client,
		ttl:    ttl,
	}
}

func pingKey(employeeID int64) string {
	return fmt.Sprintf("location_ping:%d", employeeID)
}

func (r *RedisFieldStateRepository) SavePing(ctx context.Context, ping *models.LocationPing) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(ping)
	if err != nil {
		return fmt.Errorf("failed to marshal ping: %w", err)
	}
	if err := r.client.Set(ctx, pingKey(ping.EmployeeID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set ping in redis: %w", err)
	}
	return nil
}

// LatestPing returns nil without error when no ping is stored.
func (r *RedisFieldStateRepository) LatestPing(ctx context.Context, employeeID int64) (*models.LocationPing, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, pingKey(employeeID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ping from redis: %w", err)
	}

	var ping models.LocationPing
	if err := json.Unmarshal([]byte(val), &ping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ping: %w", err)
	}
	return &ping, nil
}

func (r *RedisFieldStateRepository) ClearPing(ctx context.Context, employeeID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, pingKey(employeeID)).Err(); err != nil {
		return fmt.Errorf("failed to delete ping from redis: %w", err)
	}
	return nil
}

func (r *RedisFieldStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	rk := "rate_limit:" + key
	count, err := r.client.Incr(ctx, rk).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, rk, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
