package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are hidden from every read
// immediately and physically removed by Sweep (or on the next write to the
// same key). It is suitable for single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOption customizes a Memory store.
type MemoryOption func(*Memory)

// WithClock injects the time source. Tests use it to move past TTLs.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// live returns the entry at key if it exists and has not expired. Caller
// holds m.mu.
func (m *Memory) live(key string, now time.Time) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !now.Before(entry.expiresAt) {
		return memoryEntry{}, false
	}
	return entry, true
}

// Get returns a copy of the value at key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(key, m.now())
	if !ok {
		return nil, ErrNotFound
	}
	return clone(entry.value), nil
}

// Set stores a copy of value.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: clone(value), expiresAt: m.now().Add(ttl)}
	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// TTL returns the remaining lifetime of key.
func (m *Memory) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.live(key, now)
	if !ok {
		return 0, ErrNotFound
	}
	return entry.expiresAt.Sub(now), nil
}

// Mutate runs fn under the store lock, so it is linearizable against every
// other operation on the store.
func (m *Memory) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.live(key, now)
	if !ok {
		delete(m.entries, key)
		return ErrNotFound
	}

	mutation, err := fn(clone(entry.value))
	if err != nil {
		return err
	}

	switch mutation.Op {
	case OpReplace:
		m.entries[key] = memoryEntry{value: clone(mutation.Value), expiresAt: entry.expiresAt}
	case OpDelete:
		delete(m.entries, key)
	}
	return nil
}

// Incr increments a decimal counter stored at key.
func (m *Memory) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if window <= 0 {
		return 0, ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.live(key, now)
	if !ok {
		m.entries[key] = memoryEntry{value: []byte("1"), expiresAt: now.Add(window)}
		return 1, nil
	}

	count, err := strconv.ParseInt(string(entry.value), 10, 64)
	if err != nil {
		return 0, err
	}
	count++
	m.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(count, 10)), expiresAt: entry.expiresAt}
	return count, nil
}

// Sweep removes every expired entry and reports how many were purged.
func (m *Memory) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	purged := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Len reports the number of physically stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
