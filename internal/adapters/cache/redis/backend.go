package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/chatsync/internal/adapters/cache"
)

const keyPrefix = "chatsync:cache:"

// Backend keeps cache slots in Redis, for desktop or shared dev setups where
// several client processes reuse one cache.
type Backend struct {
	client *redis.Client
}

// Open parses redisURL and verifies the connection.
func Open(ctx context.Context, redisURL string) (*Backend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Backend{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Backend {
	return &Backend{client: client}
}

func slotKey(key string) string {
	return keyPrefix + key
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, slotKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("redis cache get: %w", err)
	}
	return data, nil
}

// Put overwrites the slot; no TTL, the slot lives until the next snapshot.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, slotKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis cache put: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}
