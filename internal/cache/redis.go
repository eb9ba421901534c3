package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis shares cached payloads between API instances. Keys are namespaced by
// a generation counter so Clear is a single INCR; stale generations expire
// through their TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects to url (redis:// or rediss://).
func NewRedis(url, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), prefix, ttl), nil
}

func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "landledger:cache"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) genKey() string { return r.prefix + ":gen" }

func (r *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *Redis) key(ctx context.Context, key string) (string, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return "", fmt.Errorf("read cache generation: %w", err)
	}
	return fmt.Sprintf("%s:%d:%s", r.prefix, gen, key), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := r.key(ctx, key)
	if err != nil {
		return nil, false, err
	}
	b, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	k, err := r.key(ctx, key)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, k, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.genKey()).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
