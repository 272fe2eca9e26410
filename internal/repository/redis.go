package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for slot lock")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSlotLocker is a SET NX based lock shared by every API instance.
type RedisSlotLocker struct {
	client  *redis.Client
	ttl     time.Duration
	wait    time.Duration
	backoff time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// NewRedisSlotLocker holds locks for at most ttl and waits up to wait to acquire one.
func NewRedisSlotLocker(client *redis.Client, ttl, wait time.Duration) *RedisSlotLocker {
	return &RedisSlotLocker{
		client:  client,
		ttl:     ttl,
		wait:    wait,
		backoff: 20 * time.Millisecond,
	}
}

func (l *RedisSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// Используем отдельный контекст: запрос мог уже завершиться
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
