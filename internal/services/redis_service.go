package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService backs the replay guard and the initialize rate limiter with
// Redis so they hold across server instances.
type RedisService struct {
	client    *redis.Client
	replayTTL time.Duration
	rateLimit time.Duration
}

// NewRedisService creates a new Redis service instance
func NewRedisService(client *redis.Client, replayTTL, rateLimit time.Duration) *RedisService {
	return &RedisService{
		client:    client,
		replayTTL: replayTTL,
		rateLimit: rateLimit,
	}
}

// Seen reports whether the webhook event key was already processed
func (r *RedisService) Seen(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, replayKey(key)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Remember marks the webhook event key as processed
func (r *RedisService) Remember(ctx context.Context, key string) error {
	return r.client.Set(ctx, replayKey(key), time.Now().Unix(), r.replayTTL).Err()
}

// Allow admits at most one attempt per key within the rate limit window
func (r *RedisService) Allow(ctx context.Context, key string) (bool, error) {
	if r.rateLimit <= 0 {
		return true, nil
	}
	return r.client.SetNX(ctx, fmt.Sprintf("payment_rate_limit:%s", key), "1", r.rateLimit).Result()
}

func replayKey(key string) string {
	return fmt.Sprintf("webhook_event:%s", eventID(key))
}
