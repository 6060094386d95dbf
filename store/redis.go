package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMutateRetries = 4

// Redis is a Store backed by a Redis deployment (standalone, sentinel or
// cluster through redis.UniversalClient). Expiry is native, so Redis does not
// implement Sweepable.
type Redis struct {
	client  redis.UniversalClient
	retries int
}

// RedisOption customizes a Redis store.
type RedisOption func(*Redis)

// WithMutateRetries sets how many optimistic WATCH attempts Mutate makes
// before giving up with ErrContention.
func WithMutateRetries(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.retries = n
		}
	}
}

// NewRedis wraps client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, retries: defaultMutateRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the value at key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Set writes value with ttl, replacing any previous value and TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// -2: missing key. -1: no expiry, which this package never writes.
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// Mutate runs fn inside a WATCH/MULTI transaction on key. A concurrent write
// to key between the read and EXEC aborts the transaction and fn is run again
// on the fresh value.
func (r *Redis) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	for i := 0; i < r.retries; i++ {
		var fnErr error
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			mutation, err := fn(data)
			if err != nil {
				fnErr = err
				return err
			}

			switch mutation.Op {
			case OpReplace:
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.SetArgs(ctx, key, mutation.Value, redis.SetArgs{KeepTTL: true})
					return nil
				})
			case OpDelete:
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if fnErr != nil {
				return fnErr
			}
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	return ErrContention
}

// Incr implements a fixed-window counter. INCR and EXPIRE NX share one
// MULTI/EXEC, so the counter never exists without a TTL and later hits
// never move the window.
func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, ErrInvalidTTL
	}

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return incr.Val(), nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
