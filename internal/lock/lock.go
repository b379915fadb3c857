// Package lock 基于 Redis 的分布式互斥锁，保证多副本下同一时刻只有一个对账在跑
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只删除自己持有的锁
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// ReconcileKey 对账锁键
const ReconcileKey = "batterycontrol:reconcile"

// Lock 已持有的锁
type Lock struct {
	Key   string
	Token string
	TTL   time.Duration
}

// RedisLocker 用 SETNX 实现的锁
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker 创建锁
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client not initialized")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be > 0")
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}, nil
}

// TryLock 尝试加锁，已被占用时返回 (nil, false, nil)
func (l *RedisLocker) TryLock(ctx context.Context) (*Lock, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{Key: l.key, Token: token, TTL: l.ttl}, true, nil
}

// Unlock 释放锁，token 不匹配时不做任何事
func (l *RedisLocker) Unlock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return errors.New("lock is nil")
	}
	if err := l.client.Eval(ctx, releaseScript, []string{lock.Key}, lock.Token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", lock.Key, err)
	}
	return nil
}
