package tokens

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goReset/store"
)

const (
	keyPrefix       = "rt"
	recordVersionV1 = 1
)

var (
	// ErrRegistryUnavailable wraps store failures.
	ErrRegistryUnavailable = errors.New("reset token registry unavailable")
	// ErrCorruptRecord is returned when a registry entry cannot be decoded.
	ErrCorruptRecord = errors.New("reset token record corrupt")
)

// State is the registry view of a jti.
type State uint8

const (
	// StateNotFound means the jti is unknown or its entry has lapsed.
	StateNotFound State = iota
	// StateUnused means the token is live and has not been consumed.
	StateUnused
	// StateUsed means the token was consumed. It stays used until it lapses.
	StateUsed
)

func (s State) String() string {
	switch s {
	case StateUnused:
		return "unused"
	case StateUsed:
		return "used"
	default:
		return "not_found"
	}
}

// Status is the result of Registry.Status.
type Status struct {
	State     State
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    time.Time
}

// MarkOutcome is the result of Registry.MarkUsed.
type MarkOutcome uint8

const (
	// MarkNotFound means there was no live entry to mark.
	MarkNotFound MarkOutcome = iota
	// MarkMarked means the entry is now (or already was) used.
	MarkMarked
)

func (o MarkOutcome) String() string {
	if o == MarkMarked {
		return "marked"
	}
	return "not_found"
}

type entry struct {
	Used      bool
	CreatedAt int64
	ExpiresAt int64
	UsedAt    int64
	Email     string
}

// Registry records minted jtis and their used flag.
type Registry struct {
	store  store.Store
	prefix string
	now    func() time.Time
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock injects the time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithKeyPrefix prepends prefix to every registry key.
func WithKeyPrefix(prefix string) RegistryOption {
	return func(r *Registry) {
		r.prefix = prefix
	}
}

// NewRegistry returns a Registry over s.
func NewRegistry(s store.Store, opts ...RegistryOption) *Registry {
	r := &Registry{store: s, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) key(jti string) string {
	return r.prefix + keyPrefix + ":" + jti
}

// Register stores an unused entry for jti. ttl should equal the token's own
// lifetime so signature validity and registry liveness lapse together.
func (r *Registry) Register(ctx context.Context, jti, email string, ttl time.Duration) error {
	now := r.now()
	encoded, err := encodeEntry(&entry{
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
		Email:     email,
	})
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.key(jti), encoded, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// Status reports the state of jti. An unknown jti is StateNotFound with a
// nil error.
func (r *Registry) Status(ctx context.Context, jti string) (Status, error) {
	data, err := r.store.Get(ctx, r.key(jti))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Status{State: StateNotFound}, nil
		}
		return Status{}, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	e, err := decodeEntry(data)
	if err != nil {
		return Status{}, err
	}
	if r.now().UnixMilli() >= e.ExpiresAt {
		return Status{State: StateNotFound}, nil
	}

	status := Status{
		State:     StateUnused,
		Email:     e.Email,
		CreatedAt: time.UnixMilli(e.CreatedAt),
		ExpiresAt: time.UnixMilli(e.ExpiresAt),
	}
	if e.Used {
		status.State = StateUsed
		status.UsedAt = time.UnixMilli(e.UsedAt)
	}
	return status, nil
}

// MarkUsed flips jti to used. Repeated calls return MarkMarked and leave
// the entry untouched, so usedAt keeps the first mark and the remaining
// TTL is never extended.
func (r *Registry) MarkUsed(ctx context.Context, jti string) (MarkOutcome, error) {
	outcome := MarkNotFound

	err := r.store.Mutate(ctx, r.key(jti), func(current []byte) (store.Mutation, error) {
		e, err := decodeEntry(current)
		if err != nil {
			return store.Keep(), err
		}

		now := r.now().UnixMilli()
		if now >= e.ExpiresAt {
			outcome = MarkNotFound
			return store.Delete(), nil
		}
		if e.Used {
			outcome = MarkMarked
			return store.Keep(), nil
		}

		e.Used = true
		e.UsedAt = now
		updated, err := encodeEntry(e)
		if err != nil {
			return store.Keep(), err
		}
		outcome = MarkMarked
		return store.Replace(updated), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return MarkNotFound, nil
		case errors.Is(err, ErrCorruptRecord):
			return MarkNotFound, err
		default:
			return MarkNotFound, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
		}
	}

	return outcome, nil
}

// Remaining reports the store TTL left on jti's entry.
func (r *Registry) Remaining(ctx context.Context, jti string) (time.Duration, error) {
	ttl, err := r.store.TTL(ctx, r.key(jti))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	return ttl, err
}

func encodeEntry(e *entry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	if e.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	for _, v := range []int64{e.CreatedAt, e.ExpiresAt, e.UsedAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	if len(e.Email) > 65535 {
		return nil, errors.New("reset token email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(e.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(e.Email)

	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*entry, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != recordVersionV1 {
		return nil, ErrCorruptRecord
	}
	used, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}

	e := &entry{Used: used == 1}
	for _, dst := range []*int64{&e.CreatedAt, &e.ExpiresAt, &e.UsedAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, ErrCorruptRecord
		}
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, ErrCorruptRecord
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, ErrCorruptRecord
	}
	e.Email = string(email)

	return e, nil
}
