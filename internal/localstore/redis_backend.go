package localstore

import (
	"context"
	"errors"
	"fmt"

	pkgredis "github.com/angelmondragon/bookworm-storefront/pkg/redis"
)

// RedisBackend keeps entries under bw:profile:<profile>:<key>.
type RedisBackend struct {
	client *pkgredis.Client
}

func NewRedisBackend(client *pkgredis.Client) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisBackend{client: client}, nil
}

func (b *RedisBackend) Get(ctx context.Context, profileID, key string) (string, error) {
	val, err := b.client.Get(ctx, b.client.ProfileKey(profileID, key))
	if errors.Is(err, pkgredis.ErrNotFound) {
		return "", ErrNotFound
	}
	return val, err
}

func (b *RedisBackend) Set(ctx context.Context, profileID, key, value string) error {
	return b.client.Set(ctx, b.client.ProfileKey(profileID, key), value)
}

func (b *RedisBackend) Delete(ctx context.Context, profileID, key string) error {
	return b.client.Del(ctx, b.client.ProfileKey(profileID, key))
}
