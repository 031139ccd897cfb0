package scan

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "tierkeep:scanlock:"

// RedisLocker 基于 Redis SETNX 的扫描去重锁
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire 尝试获取锁，已被持有时返回 false
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKeyPrefix+key, time.Now().Unix(), ttl).Result()
}

// Release 释放锁
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, lockKeyPrefix+key).Err()
}
