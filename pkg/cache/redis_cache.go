package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the small key-value surface the session stores need.
type Cache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = redis.Nil

type RedisCache struct {
	client *redis.Client
}

// Default client limits. Session writes sit on the span start path, so a
// dead server must fail fast instead of waiting on go-redis retries.
const (
	DefaultDialTimeout = 250 * time.Millisecond
	DefaultIOTimeout   = 250 * time.Millisecond
)

// Option tunes the underlying go-redis client.
type Option func(*redis.Options)

// WithTimeouts sets the dial, read and write timeouts.
func WithTimeouts(dial, io time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = io
		o.WriteTimeout = io
	}
}

// WithMaxRetries sets go-redis command retries. -1 disables them.
func WithMaxRetries(n int) Option {
	return func(o *redis.Options) { o.MaxRetries = n }
}

// NewRedisCache returns a Cache implemented with Redis
func NewRedisCache(addr, password string, opts ...Option) Cache {
	ro := &redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultIOTimeout,
		WriteTimeout: DefaultIOTimeout,
		PoolTimeout:  DefaultIOTimeout,
		MaxRetries:   -1,
	}
	for _, opt := range opts {
		opt(ro)
	}
	return &RedisCache{client: redis.NewClient(ro)}
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// SetMany writes every key inside a single MULTI/EXEC block.
func (r *RedisCache) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, ttl)
		}
		return nil
	})
	return err
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
