package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisStore keeps each setting as a plain string key under a common prefix.
type RedisStore struct {
	pool   *redis.Pool
	prefix string
}

// NewRedisStore connects lazily; the first Get or Set dials rawURL.
func NewRedisStore(rawURL, prefix string) *RedisStore {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, rawURL)
		},
	}
	return &RedisStore{pool: pool, prefix: prefix}
}

func (r *RedisStore) prefixedKey(key string) string {
	return r.prefix + key
}

func (r *RedisStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	defer conn.Close()

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = r.prefixedKey(k)
	}
	values, err := redis.ByteSlices(conn.Do("MGET", args...))
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v != nil {
			out[keys[i]] = v
		}
	}
	return out, nil
}

// Set applies values inside MULTI/EXEC so readers never see half a write.
func (r *RedisStore) Set(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	for k, v := range values {
		if v == nil {
			err = conn.Send("DEL", r.prefixedKey(k))
		} else {
			err = conn.Send("SET", r.prefixedKey(k), v)
		}
		if err != nil {
			return err
		}
	}
	replies, err := redis.Values(conn.Do("EXEC"))
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	for _, reply := range replies {
		if e, ok := reply.(redis.Error); ok {
			return fmt.Errorf("writing settings: %w", e)
		}
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.pool.Close()
}
