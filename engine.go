package goReset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"github.com/MrEthical07/goReset/internal/codes"
	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/tokens"
	"github.com/MrEthical07/goReset/jwt"
	"github.com/MrEthical07/goReset/store"
)

// Engine runs the password-reset credential lifecycle: code issuance, code
// verification, reset token minting and single-use consumption.
//
// Engine methods are safe for concurrent use after Builder.Build. The only
// mutual exclusion is the store's per-key Mutate.
type Engine struct {
	config Config

	store    store.Store
	codes    *codes.Manager
	issuer   *tokens.Issuer
	registry *tokens.Registry
	verifier TokenVerifier
	limiter  *limiters.CodeRequestLimiter

	identity IdentityResolver
	notifier Notifier
	sink     TokenSink

	logger  *zap.Logger
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	sweeper *store.Sweeper
	now     func() time.Time

	flows     internalflows.Deps
	closeOnce sync.Once
}

// Close stops the sweeper and drains the audit dispatcher, waiting as long
// as the sink needs. It is safe to call more than once.
func (e *Engine) Close() {
	_ = e.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. Audit events still queued when ctx ends
// are counted as dropped and ctx.Err() is returned. Only the first call
// does any work.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	var err error
	e.closeOnce.Do(func() {
		if e.sweeper != nil {
			e.sweeper.Stop()
		}
		if e.audit != nil {
			err = e.audit.Close(ctx)
		}
		_ = e.logger.Sync()
	})
	return err
}

// AuditDropped reports how many audit events were dropped.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType reports dropped audit events keyed by event type.
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// RequestCode issues a verification code for email and hands it to the
// Notifier. The code value is never returned. The caller's IP, when set
// with WithClientIP, is the rate-limit identity.
//
// Errors: ErrInvalidEmail, ErrRateLimited, ErrUnknownIdentity,
// ErrIdentityUnavailable, ErrStoreUnavailable, ErrNotifierFailed.
func (e *Engine) RequestCode(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunRequestCode(ctx, email, e.flows.RequestCode)
}

// VerifyCode consumes the pending code for email and returns a freshly
// minted, registered reset token. A wrong code leaves the pending code in
// place; an expired one is removed.
//
// Errors: ErrInvalidEmail, ErrInvalidCode, ErrNoPendingCode,
// ErrCodeMismatch, ErrCodeExpired, ErrSignerFailed, ErrStoreUnavailable,
// ErrTokenSinkFailed.
func (e *Engine) VerifyCode(ctx context.Context, email, code string) (*IssuedToken, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	minted, err := internalflows.RunVerifyCode(ctx, email, code, e.flows.VerifyCode)
	if err != nil {
		return nil, err
	}
	return issuedFromMinted(email, minted), nil
}

// TokenStatus returns the registry state of jti. An unknown or lapsed jti
// is TokenNotFound with a nil error.
func (e *Engine) TokenStatus(ctx context.Context, jti string) (TokenStatus, error) {
	if e == nil {
		return TokenStatus{}, ErrEngineNotReady
	}
	record, err := internalflows.RunTokenStatus(ctx, jti, e.flows.Token)
	if err != nil {
		return TokenStatus{}, err
	}
	return statusFromRecord(jti, record), nil
}

// ValidateToken reports whether jti is known, unused and unexpired.
func (e *Engine) ValidateToken(ctx context.Context, jti string) (TokenLiveness, error) {
	if e == nil {
		return TokenLiveness{}, ErrEngineNotReady
	}
	live, email, err := internalflows.RunValidateToken(ctx, jti, e.flows.Token)
	if err != nil {
		return TokenLiveness{}, err
	}
	return TokenLiveness{JTI: jti, Live: live, Email: email}, nil
}

// MarkTokenUsed consumes jti. Repeated calls succeed and never extend the
// entry's lifetime. An unknown or lapsed jti returns ErrTokenNotFound.
func (e *Engine) MarkTokenUsed(ctx context.Context, jti string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return internalflows.RunMarkTokenUsed(ctx, jti, e.flows.Token)
}

// InspectToken verifies a presented reset token and returns its claims and
// registry state. A used token returns its claims with ErrTokenUsed.
func (e *Engine) InspectToken(ctx context.Context, token string) (*jwt.ResetClaims, TokenStatus, error) {
	if e == nil {
		return nil, TokenStatus{}, ErrEngineNotReady
	}
	claims, record, err := internalflows.RunInspectToken(ctx, token, e.flows.Token)
	var jti string
	if claims != nil {
		jti = claims.ID
	}
	return claims, statusFromRecord(jti, record), err
}

// ParseToken checks a presented reset token's signature and claims without
// consulting the registry. Failures wrap ErrTokenInvalid.
func (e *Engine) ParseToken(token string) (*jwt.ResetClaims, error) {
	if e == nil || e.verifier == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// RetryAfter reports how long the caller in ctx must wait before the code
// request window for email reopens. Zero means no window is open.
func (e *Engine) RetryAfter(ctx context.Context, email string) time.Duration {
	if e == nil || e.limiter == nil {
		return 0
	}
	return e.limiter.RetryAfter(ctx, clientIPFromContext(ctx), email)
}

// Ping checks the backing store when it supports it.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	pinger, ok := e.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func issuedFromMinted(email string, minted internalflows.MintedToken) *IssuedToken {
	return &IssuedToken{
		Email:     email,
		Token:     minted.Token,
		JTI:       minted.JTI,
		IssuedAt:  minted.IssuedAt,
		ExpiresAt: minted.ExpiresAt,
		ExpiresIn: minted.ExpiresIn,
	}
}

func statusFromRecord(jti string, record internalflows.TokenRecord) TokenStatus {
	status := TokenStatus{JTI: jti}
	switch record.State {
	case internalflows.TokenStateUnused:
		status.State = TokenUnused
	case internalflows.TokenStateUsed:
		status.State = TokenUsed
	default:
		status.State = TokenNotFound
		return status
	}
	status.Email = record.Email
	status.CreatedAt = record.CreatedAt
	status.ExpiresAt = record.ExpiresAt
	status.UsedAt = record.UsedAt
	return status
}
