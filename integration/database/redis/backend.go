package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/nimbleresolve/leadgate/core/store"
)

// Backend implements store.Backend on Redis. Values are stored without a
// Redis-level TTL; the store layer owns backup expiration so the
// expiry contract stays identical across backends.
type Backend struct {
	client *redis.Client
	prefix string
}

// NewBackend wraps a connected Redis client. The prefix namespaces all
// keys, so several deployments can share an instance.
func NewBackend(client *redis.Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) key(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, b.key(key), value, 0).Err()
}

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	value, err := b.client.Get(ctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.key(key)).Err()
}
