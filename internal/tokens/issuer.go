// Package tokens mints signed reset tokens and tracks their single-use state.
//
// The Issuer and the Registry are deliberately separate: minting is a pure
// signing step plus a fresh jti, and the caller decides when (and whether) to
// register the result.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goReset/jwt"
)

// ErrSignerFailed wraps signing failures.
var ErrSignerFailed = errors.New("reset token signing failed")

// Signer serializes reset claims into a token string.
type Signer interface {
	Sign(claims jwt.ResetClaims) (string, error)
}

// Minted is the result of Issuer.Mint.
type Minted struct {
	Token     string
	JTI       string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

// Issuer mints reset tokens.
type Issuer struct {
	signer Signer
	ttl    time.Duration
	now    func() time.Time
	newID  func() (string, error)
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerClock injects the time source.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithIDGenerator replaces the jti generator.
func WithIDGenerator(gen func() (string, error)) IssuerOption {
	return func(i *Issuer) {
		if gen != nil {
			i.newID = gen
		}
	}
}

// NewIssuer returns an Issuer that signs with signer and stamps ttl.
func NewIssuer(signer Signer, ttl time.Duration, opts ...IssuerOption) *Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	i := &Issuer{
		signer: signer,
		ttl:    ttl,
		now:    time.Now,
		newID:  newUUID,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL reports the lifetime stamped on minted tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Mint builds and signs a token for email. It does not touch the registry.
func (i *Issuer) Mint(email string) (Minted, error) {
	jti, err := i.newID()
	if err != nil {
		return Minted{}, fmt.Errorf("%w: %v", ErrSignerFailed, err)
	}

	// Signed claims carry whole seconds; keep the registry view consistent.
	now := i.now().Truncate(time.Second)
	token, err := i.signer.Sign(jwt.NewClaims(email, jti, now, i.ttl))
	if err != nil {
		return Minted{}, fmt.Errorf("%w: %v", ErrSignerFailed, err)
	}

	return Minted{
		Token:     token,
		JTI:       jti,
		Subject:   email,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
		ExpiresIn: i.ttl,
	}, nil
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
