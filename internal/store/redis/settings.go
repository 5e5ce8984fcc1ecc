package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lupppig/deliverynotify/internal/settings"
)

// SettingsBackend keeps each user's settings blob as a plain string key.
type SettingsBackend struct {
	client *redis.Client
}

func NewSettingsBackend(redisURL string) (*SettingsBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &SettingsBackend{client: client}, nil
}

func (b *SettingsBackend) Close() error {
	return b.client.Close()
}

func (b *SettingsBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *SettingsBackend) Set(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
