package storage

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	pkgredis "github.com/angelmondragon/packfinderz-cart/pkg/redis"
)

const BackendRedis = "redis"

// RedisClient is the subset of pkg/redis.Client the adapter needs.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(storageKey string) string
}

// Redis stores the snapshot as a string value under pf:cart:<storageKey>.
type Redis struct {
	client RedisClient
	key    string
	ttl    time.Duration
}

// NewRedis builds the adapter; a zero ttl keeps snapshots forever.
func NewRedis(client RedisClient, storageKey string, ttl time.Duration) *Redis {
	return &Redis{client: client, key: client.CartKey(storageKey), ttl: ttl}
}

func (r *Redis) Backend() string { return BackendRedis }

func (r *Redis) GetCart(ctx context.Context) (*cart.State, error) {
	raw, err := r.client.Get(ctx, r.key)
	if errors.Is(err, pkgredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(cart.OpGet, BackendRedis, err)
	}
	state, err := decodeOrClear([]byte(raw), func() error { return r.client.Del(ctx, r.key) })
	return state, storageError(cart.OpClear, BackendRedis, err)
}

func (r *Redis) SaveCart(ctx context.Context, state cart.State) error {
	err := writeWithReducedRetry(state, isRedisQuota, func(payload []byte) error {
		return r.client.Set(ctx, r.key, string(payload), r.ttl)
	})
	return storageError(cart.OpSave, BackendRedis, err)
}

func (r *Redis) ClearCart(ctx context.Context) error {
	return storageError(cart.OpClear, BackendRedis, r.client.Del(ctx, r.key))
}

func isRedisQuota(err error) bool {
	return isQuota(err) || pkgredis.IsOutOfMemory(err)
}

