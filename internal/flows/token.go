package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/jwt"
)

// TokenState mirrors the registry state without importing it.
type TokenState uint8

const (
	TokenStateNotFound TokenState = iota
	TokenStateUnused
	TokenStateUsed
)

// TokenRecord is the registry view of one jti.
type TokenRecord struct {
	State     TokenState
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    time.Time
}

type TokenMetrics struct {
	TokenLive       int
	TokenNotLive    int
	TokenMarkedUsed int
}

type TokenEvents struct {
	TokenMarkedUsed string
}

type TokenErrors struct {
	EngineNotReady   error
	InvalidTokenID   error
	TokenNotFound    error
	TokenUsed        error
	TokenInvalid     error
	StoreUnavailable error
}

// TokenDeps is shared by the status, validate, mark-used and inspect flows.
type TokenDeps struct {
	ValidJTI func(string) bool

	Status      func(ctx context.Context, jti string) (TokenRecord, error)
	MarkUsed    func(ctx context.Context, jti string) (bool, error)
	VerifyToken func(token string) (*jwt.ResetClaims, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics TokenMetrics
	Events  TokenEvents
	Errors  TokenErrors
}

// RunTokenStatus reads the registry state of jti. An unknown jti is
// TokenStateNotFound with a nil error.
func RunTokenStatus(ctx context.Context, jti string, deps TokenDeps) (TokenRecord, error) {
	normalizeTokenDeps(&deps)

	if deps.Status == nil {
		return TokenRecord{}, deps.Errors.EngineNotReady
	}
	if !deps.ValidJTI(jti) {
		return TokenRecord{}, deps.Errors.InvalidTokenID
	}

	record, err := deps.Status(ctx, jti)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	return record, nil
}

// RunValidateToken answers whether jti is known, unused and unexpired. The
// email is only returned for a live token.
func RunValidateToken(ctx context.Context, jti string, deps TokenDeps) (bool, string, error) {
	record, err := RunTokenStatus(ctx, jti, deps)
	if err != nil {
		return false, "", err
	}

	if record.State != TokenStateUnused {
		metricInc(deps.MetricInc, deps.Metrics.TokenNotLive)
		return false, "", nil
	}
	metricInc(deps.MetricInc, deps.Metrics.TokenLive)
	return true, record.Email, nil
}

// RunMarkTokenUsed flips jti to used. Marking an already used token
// succeeds again.
func RunMarkTokenUsed(ctx context.Context, jti string, deps TokenDeps) error {
	normalizeTokenDeps(&deps)

	if deps.MarkUsed == nil {
		return deps.Errors.EngineNotReady
	}
	if !deps.ValidJTI(jti) {
		return deps.Errors.InvalidTokenID
	}

	marked, err := deps.MarkUsed(ctx, jti)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.TokenMarkedUsed, false, "", jti, wrapped, nil)
		return wrapped
	}
	if !marked {
		deps.EmitAudit(ctx, deps.Events.TokenMarkedUsed, false, "", jti, deps.Errors.TokenNotFound, nil)
		return deps.Errors.TokenNotFound
	}

	deps.MetricInc(deps.Metrics.TokenMarkedUsed)
	deps.EmitAudit(ctx, deps.Events.TokenMarkedUsed, true, "", jti, nil, nil)
	return nil
}

// RunInspectToken verifies a presented token and reads the registry entry
// for its jti. The claims are returned alongside ErrTokenUsed so callers can
// still report who presented it.
func RunInspectToken(ctx context.Context, token string, deps TokenDeps) (*jwt.ResetClaims, TokenRecord, error) {
	normalizeTokenDeps(&deps)

	if deps.VerifyToken == nil || deps.Status == nil {
		return nil, TokenRecord{}, deps.Errors.EngineNotReady
	}

	claims, err := deps.VerifyToken(token)
	if err != nil {
		return nil, TokenRecord{}, fmt.Errorf("%w: %v", deps.Errors.TokenInvalid, err)
	}

	record, err := RunTokenStatus(ctx, claims.ID, deps)
	if err != nil {
		return nil, TokenRecord{}, err
	}

	switch record.State {
	case TokenStateNotFound:
		return nil, record, deps.Errors.TokenNotFound
	case TokenStateUsed:
		return claims, record, deps.Errors.TokenUsed
	}
	if record.Email != claims.Subject {
		return nil, TokenRecord{}, fmt.Errorf("%w: subject does not match registry", deps.Errors.TokenInvalid)
	}
	return claims, record, nil
}

func metricInc(inc func(int), id int) {
	if inc != nil {
		inc(id)
	}
}

func normalizeTokenDeps(deps *TokenDeps) {
	if deps.ValidJTI == nil {
		deps.ValidJTI = func(s string) bool { return s != "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
