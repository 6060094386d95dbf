package flows

import (
	"context"
	"fmt"
	"time"
)

// VerifyOutcome mirrors codes.Outcome without importing it.
type VerifyOutcome uint8

const (
	VerifyNoPendingCode VerifyOutcome = iota
	VerifyValid
	VerifyMismatch
	VerifyExpired
)

// MintedToken is the issuer's result as seen by the flow.
type MintedToken struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

type CodeVerifyMetrics struct {
	VerifySuccess   int
	VerifyMismatch  int
	VerifyExpired   int
	VerifyNoPending int
	VerifyLatency   int
	TokenMinted     int
	TokenSinkFailed int
}

type CodeVerifyEvents struct {
	CodeVerified    string
	CodeRejected    string
	TokenMinted     string
	TokenSinkFailed string
}

type CodeVerifyErrors struct {
	EngineNotReady   error
	InvalidEmail     error
	InvalidCode      error
	NoPendingCode    error
	CodeMismatch     error
	CodeExpired      error
	StoreUnavailable error
	SignerFailed     error
	TokenSinkFailed  error
}

// CodeVerifyDeps is everything RunVerifyCode touches.
type CodeVerifyDeps struct {
	Now        func() time.Time
	ValidEmail func(string) bool
	ValidCode  func(string) bool

	VerifyCode    func(ctx context.Context, email, code string) (VerifyOutcome, error)
	MintToken     func(email string) (MintedToken, error)
	RegisterToken func(ctx context.Context, jti, email string, ttl time.Duration) error
	PersistToken  func(ctx context.Context, email string, token MintedToken) error

	MetricInc     func(int)
	MetricObserve func(int, time.Duration)
	EmitAudit     AuditFunc

	Metrics CodeVerifyMetrics
	Events  CodeVerifyEvents
	Errors  CodeVerifyErrors
}

// RunVerifyCode consumes the pending code for email and, on a match, mints,
// registers and publishes a reset token. Failures after the code was
// consumed do not restore it; the caller starts over with a new code.
func RunVerifyCode(ctx context.Context, email, code string, deps CodeVerifyDeps) (MintedToken, error) {
	normalizeCodeVerifyDeps(&deps)

	if deps.VerifyCode == nil || deps.MintToken == nil || deps.RegisterToken == nil {
		return MintedToken{}, deps.Errors.EngineNotReady
	}
	if !deps.ValidEmail(email) {
		return MintedToken{}, deps.Errors.InvalidEmail
	}
	if !deps.ValidCode(code) {
		return MintedToken{}, deps.Errors.InvalidCode
	}

	start := deps.Now()
	outcome, err := deps.VerifyCode(ctx, email, code)
	deps.MetricObserve(deps.Metrics.VerifyLatency, deps.Now().Sub(start))
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.CodeRejected, false, email, "", wrapped, nil)
		return MintedToken{}, wrapped
	}

	if rejected := verifyOutcomeError(outcome, deps); rejected != nil {
		deps.EmitAudit(ctx, deps.Events.CodeRejected, false, email, "", rejected, func() map[string]string {
			return map[string]string{"outcome": outcomeName(outcome)}
		})
		return MintedToken{}, rejected
	}

	deps.MetricInc(deps.Metrics.VerifySuccess)
	deps.EmitAudit(ctx, deps.Events.CodeVerified, true, email, "", nil, nil)

	minted, err := deps.MintToken(email)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", deps.Errors.SignerFailed, err)
		deps.EmitAudit(ctx, deps.Events.TokenMinted, false, email, "", wrapped, nil)
		return MintedToken{}, wrapped
	}

	if err := deps.RegisterToken(ctx, minted.JTI, email, minted.ExpiresIn); err != nil {
		wrapped := fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.TokenMinted, false, email, minted.JTI, wrapped, nil)
		return MintedToken{}, wrapped
	}

	if deps.PersistToken != nil {
		if err := deps.PersistToken(ctx, email, minted); err != nil {
			wrapped := fmt.Errorf("%w: %v", deps.Errors.TokenSinkFailed, err)
			deps.MetricInc(deps.Metrics.TokenSinkFailed)
			deps.EmitAudit(ctx, deps.Events.TokenSinkFailed, false, email, minted.JTI, wrapped, nil)
			return MintedToken{}, wrapped
		}
	}

	deps.MetricInc(deps.Metrics.TokenMinted)
	deps.EmitAudit(ctx, deps.Events.TokenMinted, true, email, minted.JTI, nil, func() map[string]string {
		return map[string]string{"expires_at": minted.ExpiresAt.UTC().Format(time.RFC3339)}
	})
	return minted, nil
}

func verifyOutcomeError(outcome VerifyOutcome, deps CodeVerifyDeps) error {
	switch outcome {
	case VerifyValid:
		return nil
	case VerifyMismatch:
		deps.MetricInc(deps.Metrics.VerifyMismatch)
		return deps.Errors.CodeMismatch
	case VerifyExpired:
		deps.MetricInc(deps.Metrics.VerifyExpired)
		return deps.Errors.CodeExpired
	default:
		deps.MetricInc(deps.Metrics.VerifyNoPending)
		return deps.Errors.NoPendingCode
	}
}

func outcomeName(outcome VerifyOutcome) string {
	switch outcome {
	case VerifyValid:
		return "valid"
	case VerifyMismatch:
		return "mismatch"
	case VerifyExpired:
		return "expired"
	default:
		return "no_pending_code"
	}
}

func normalizeCodeVerifyDeps(deps *CodeVerifyDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ValidEmail == nil {
		deps.ValidEmail = func(s string) bool { return s != "" }
	}
	if deps.ValidCode == nil {
		deps.ValidCode = func(s string) bool { return s != "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.MetricObserve == nil {
		deps.MetricObserve = noopObserve
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
