// Package codes issues and verifies the numeric verification codes delivered
// by mail at the start of a password reset.
//
// # Design
//
// At most one pending code exists per email. A pending code is a versioned,
// binary-encoded record {hash(code), issuedAt, expiresAt} under a per-email
// key with a store TTL. The plaintext code is only ever returned to the caller
// of Issue for delivery; it is never persisted.
//
// Verify runs inside a single store.Mutate so that reading the record and
// deleting it on a match are one atomic step.
//
// # What this package must NOT do
//
//   - Send mail or resolve identities.
//   - Log or expose plaintext codes.
//   - Compare secrets with non-constant-time comparisons.
package codes

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goReset/internal"
	"github.com/MrEthical07/goReset/store"
)

const (
	keyPrefix       = "rc"
	recordVersionV1 = 1
)

var (
	// ErrStoreUnavailable wraps store failures.
	ErrStoreUnavailable = errors.New("verification code store unavailable")
	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("verification code record corrupt")
)

// Outcome classifies a verification attempt.
type Outcome uint8

const (
	// OutcomeNoPendingCode means no live code exists for the email.
	OutcomeNoPendingCode Outcome = iota
	// OutcomeValid means the code matched and has been consumed.
	OutcomeValid
	// OutcomeMismatch means a code is pending but the submitted value differs.
	// The pending code is left in place.
	OutcomeMismatch
	// OutcomeExpired means the pending code was past its expiry. It has been removed.
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeExpired:
		return "expired"
	default:
		return "no_pending_code"
	}
}

// Config controls code shape and lifetime.
type Config struct {
	Digits int
	TTL    time.Duration
	// ExpiredGrace keeps an expired record in the store this much longer than
	// TTL so that late submissions report OutcomeExpired rather than
	// OutcomeNoPendingCode. Zero means the store drops the record at expiry.
	ExpiredGrace time.Duration
	// KeyPrefix is prepended to every key ("<prefix>rc:<email>").
	KeyPrefix string
}

// Code is a freshly issued code. Value is the plaintext to deliver.
type Code struct {
	Email     string
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type record struct {
	Hash      [32]byte
	IssuedAt  int64
	ExpiresAt int64
}

// Manager issues and verifies codes against a store.Store.
type Manager struct {
	store   store.Store
	cfg     Config
	now     func() time.Time
	newCode func(digits int) (string, error)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock injects the time source used for issuedAt/expiresAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithGenerator replaces the random code generator. Tests use it to force
// known values.
func WithGenerator(gen func(digits int) (string, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newCode = gen
		}
	}
}

// NewManager returns a Manager writing to s.
func NewManager(s store.Store, cfg Config, opts ...Option) *Manager {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	m := &Manager{
		store:   s,
		cfg:     cfg,
		now:     time.Now,
		newCode: internal.NewCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL reports the configured code lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

func (m *Manager) key(email string) string {
	return m.cfg.KeyPrefix + keyPrefix + ":" + email
}

// Issue generates a new code for email, replacing any pending one.
func (m *Manager) Issue(ctx context.Context, email string) (Code, error) {
	value, err := m.newCode(m.cfg.Digits)
	if err != nil {
		return Code{}, err
	}

	now := m.now()
	code := Code{
		Email:     email,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}

	encoded, err := encodeRecord(&record{
		Hash:      hashCode(value),
		IssuedAt:  code.IssuedAt.UnixMilli(),
		ExpiresAt: code.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return Code{}, err
	}

	if err := m.store.Set(ctx, m.key(email), encoded, m.cfg.TTL+m.cfg.ExpiredGrace); err != nil {
		return Code{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return code, nil
}

// Verify checks submitted against the pending code for email. A match
// consumes the code; of any number of concurrent matching calls exactly one
// observes OutcomeValid.
func (m *Manager) Verify(ctx context.Context, email, submitted string) (Outcome, error) {
	provided := hashCode(submitted)
	var outcome Outcome

	err := m.store.Mutate(ctx, m.key(email), func(current []byte) (store.Mutation, error) {
		rec, err := decodeRecord(current)
		if err != nil {
			outcome = OutcomeNoPendingCode
			return store.Delete(), nil
		}

		if m.now().UnixMilli() >= rec.ExpiresAt {
			outcome = OutcomeExpired
			return store.Delete(), nil
		}

		if subtle.ConstantTimeCompare(rec.Hash[:], provided[:]) != 1 {
			outcome = OutcomeMismatch
			return store.Keep(), nil
		}

		outcome = OutcomeValid
		return store.Delete(), nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return OutcomeNoPendingCode, nil
		}
		return OutcomeNoPendingCode, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return outcome, nil
}

// Discard removes the pending code for email. It is the compensating action
// when delivery fails after Issue.
func (m *Manager) Discard(ctx context.Context, email string) error {
	if err := m.store.Delete(ctx, m.key(email)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Remaining reports how long the pending code for email stays valid. It
// returns store.ErrNotFound when there is none.
func (m *Manager) Remaining(ctx context.Context, email string) (time.Duration, error) {
	data, err := m.store.Get(ctx, m.key(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return 0, err
	}
	left := time.UnixMilli(rec.ExpiresAt).Sub(m.now())
	if left <= 0 {
		return 0, store.ErrNotFound
	}
	return left, nil
}

func hashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

func encodeRecord(rec *record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(rec.Hash[:])

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if version != recordVersionV1 {
		return nil, ErrCorruptRecord
	}

	rec := &record{}
	if err := binary.Read(reader, binary.BigEndian, &rec.IssuedAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, ErrCorruptRecord
	}
	if _, err := io.ReadFull(reader, rec.Hash[:]); err != nil {
		return nil, ErrCorruptRecord
	}

	return rec, nil
}
