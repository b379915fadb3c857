package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisLockerValidation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	tests := []struct {
		name    string
		client  *redis.Client
		ttl     time.Duration
		wantErr bool
	}{
		{"nil client", nil, time.Minute, true},
		{"zero ttl", client, 0, true},
		{"negative ttl", client, -time.Second, true},
		{"ok", client, time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewRedisLocker(tt.client, ReconcileKey, tt.ttl)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ReconcileKey, l.key)
		})
	}
}

func TestUnlockNil(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	l, err := NewRedisLocker(client, ReconcileKey, time.Minute)
	require.NoError(t, err)
	assert.Error(t, l.Unlock(context.Background(), nil))
}

// newTestClient 连接 REDIS_ADDR 指向的实例，未配置或不可达时跳过
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("failed to create client: %v, skipping integration test", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTryLockContention(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "batterycontrol:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	a, err := NewRedisLocker(client, key, time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLocker(client, key, time.Minute)
	require.NoError(t, err)

	held, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, held)

	ttl, err := client.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	other, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, other)

	require.NoError(t, a.Unlock(ctx, held))
	again, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx, again))
}

func TestUnlockForeignTokenKeepsLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "batterycontrol:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	l, err := NewRedisLocker(client, key, time.Minute)
	require.NoError(t, err)

	held, ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	tests := []struct {
		name string
		lock *Lock
	}{
		{"foreign token", &Lock{Key: key, Token: uuid.NewString(), TTL: time.Minute}},
		{"empty token", &Lock{Key: key, TTL: time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, l.Unlock(ctx, tt.lock))
			got, err := client.Get(ctx, key).Result()
			require.NoError(t, err)
			assert.Equal(t, held.Token, got)
		})
	}

	require.NoError(t, l.Unlock(ctx, held))
	_, err = client.Get(ctx, key).Result()
	assert.ErrorIs(t, err, redis.Nil)
}
