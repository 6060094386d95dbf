// Package store defines the ephemeral key/value abstraction that backs pending
// verification codes, reset-token registry entries and rate-limit windows.
//
// # Architecture boundaries
//
// Every value in a Store has a time-to-live. A key whose TTL has lapsed is
// indistinguishable from a key that was never written: Get, TTL and Mutate
// report ErrNotFound for both.
//
// Mutate is the only read-modify-write primitive. Callers that must compare
// and delete, or read and mark, do so inside one Mutate call so that no two
// concurrent callers can both observe the pre-mutation value.
//
// # What this package must NOT do
//
//   - interpret values (they are opaque bytes)
//   - keep package-level state; stores are constructed and injected
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("store: key not found")
	// ErrUnavailable wraps backend failures (network, protocol).
	ErrUnavailable = errors.New("store: backend unavailable")
	// ErrContention is returned by Mutate when optimistic retries are exhausted.
	ErrContention = errors.New("store: mutate contention")
	// ErrInvalidTTL is returned when a write is attempted without a positive TTL.
	ErrInvalidTTL = errors.New("store: ttl must be positive")
)

// Op selects what Mutate does with the key after the callback returns.
type Op uint8

const (
	// OpKeep leaves the key untouched.
	OpKeep Op = iota
	// OpReplace overwrites the value and keeps the remaining TTL.
	OpReplace
	// OpDelete removes the key.
	OpDelete
)

// Mutation is the decision returned by a MutateFunc.
type Mutation struct {
	Op    Op
	Value []byte
}

// Keep leaves the key as it is.
func Keep() Mutation { return Mutation{Op: OpKeep} }

// Replace overwrites the value without touching the remaining TTL.
func Replace(value []byte) Mutation { return Mutation{Op: OpReplace, Value: value} }

// Delete removes the key.
func Delete() Mutation { return Mutation{Op: OpDelete} }

// MutateFunc receives a private copy of the current value. Returning an error
// aborts the mutation; the key is left unchanged and the error is returned
// from Mutate as-is. Implementations may invoke the function more than once
// when an optimistic transaction is retried, so it must not have side effects
// beyond capturing its result.
type MutateFunc func(current []byte) (Mutation, error)

// Store is a TTL-bearing key/value store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Mutate(ctx context.Context, key string, fn MutateFunc) error
	// Incr increments the counter at key and returns the new value. The
	// window TTL is applied only when the counter is created.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Sweepable is implemented by stores that need periodic purging of expired
// entries. Stores with native expiry (Redis) do not implement it.
type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}
