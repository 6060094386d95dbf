package goReset

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goReset/internal/codes"
	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/tokens"
	"github.com/MrEthical07/goReset/jwt"
)

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		RequestCode: e.codeRequestFlowDeps(),
		VerifyCode:  e.codeVerifyFlowDeps(),
		Token:       e.tokenFlowDeps(),
	}
}

func (e *Engine) codeRequestFlowDeps() internalflows.CodeRequestDeps {
	return internalflows.CodeRequestDeps{
		ClientIPFromContext: clientIPFromContext,
		ValidEmail:          validEmail,
		CheckLimiter:        e.limiter.Check,
		MapLimiterError:     mapLimiterError,
		IdentityExists: func(ctx context.Context, email string) (bool, error) {
			exists, err := e.identity.Exists(ctx, email)
			if err != nil {
				e.logger.Warn("identity resolver failed", zap.Error(err))
			}
			return exists, err
		},
		IssueCode: func(ctx context.Context, email string) (internalflows.IssuedCode, error) {
			code, err := e.codes.Issue(ctx, email)
			if err != nil {
				e.logger.Error("code issue failed", zap.Error(err))
				return internalflows.IssuedCode{}, err
			}
			return internalflows.IssuedCode{Value: code.Value, ExpiresIn: code.ExpiresAt.Sub(code.IssuedAt)}, nil
		},
		DiscardCode: e.codes.Discard,
		SendCode: func(ctx context.Context, email string, code internalflows.IssuedCode) error {
			err := e.notifier.SendCode(ctx, CodeMessage{To: email, Code: code.Value, ExpiresIn: code.ExpiresIn})
			if err != nil {
				e.logger.Warn("code delivery failed, pending code discarded", zap.Error(err))
			}
			return err
		},
		LogRollbackFailure: func(_ string, err error) {
			e.logger.Error("pending code rollback failed", zap.Error(err))
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.CodeRequestMetrics{
			CodeRequested:       int(MetricCodeRequested),
			CodeRateLimited:     int(MetricCodeRateLimited),
			CodeUnknownIdentity: int(MetricCodeUnknownIdentity),
			CodeDeliveryFailed:  int(MetricCodeDeliveryFailed),
		},
		Events: internalflows.CodeRequestEvents{
			CodeRequested:      auditEventCodeRequested,
			CodeRateLimited:    auditEventCodeRateLimited,
			CodeDeliveryFailed: auditEventCodeDeliveryFailed,
		},
		Errors: internalflows.CodeRequestErrors{
			EngineNotReady:      ErrEngineNotReady,
			InvalidEmail:        ErrInvalidEmail,
			RateLimited:         ErrRateLimited,
			UnknownIdentity:     ErrUnknownIdentity,
			IdentityUnavailable: ErrIdentityUnavailable,
			StoreUnavailable:    ErrStoreUnavailable,
			NotifierFailed:      ErrNotifierFailed,
		},
	}
}

func (e *Engine) codeVerifyFlowDeps() internalflows.CodeVerifyDeps {
	deps := internalflows.CodeVerifyDeps{
		Now:        e.now,
		ValidEmail: validEmail,
		ValidCode:  codeValidator(e.config.Code.Digits),
		VerifyCode: func(ctx context.Context, email, code string) (internalflows.VerifyOutcome, error) {
			outcome, err := e.codes.Verify(ctx, email, code)
			if err != nil {
				e.logger.Error("code verify failed", zap.Error(err))
			}
			return verifyOutcome(outcome), err
		},
		MintToken: func(email string) (internalflows.MintedToken, error) {
			minted, err := e.issuer.Mint(email)
			if err != nil {
				e.logger.Error("reset token signing failed", zap.Error(err))
				return internalflows.MintedToken{}, err
			}
			return internalflows.MintedToken{
				Token:     minted.Token,
				JTI:       minted.JTI,
				IssuedAt:  minted.IssuedAt,
				ExpiresAt: minted.ExpiresAt,
				ExpiresIn: minted.ExpiresIn,
			}, nil
		},
		RegisterToken: e.registry.Register,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		MetricObserve: func(id int, d time.Duration) {
			if e.metrics != nil {
				e.metrics.Observe(MetricID(id), d)
			}
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.CodeVerifyMetrics{
			VerifySuccess:   int(MetricCodeVerifySuccess),
			VerifyMismatch:  int(MetricCodeVerifyMismatch),
			VerifyExpired:   int(MetricCodeVerifyExpired),
			VerifyNoPending: int(MetricCodeVerifyNoPending),
			VerifyLatency:   int(MetricVerifyLatency),
			TokenMinted:     int(MetricTokenMinted),
			TokenSinkFailed: int(MetricTokenSinkFailed),
		},
		Events: internalflows.CodeVerifyEvents{
			CodeVerified:    auditEventCodeVerified,
			CodeRejected:    auditEventCodeRejected,
			TokenMinted:     auditEventTokenMinted,
			TokenSinkFailed: auditEventTokenSinkFailed,
		},
		Errors: internalflows.CodeVerifyErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidEmail:     ErrInvalidEmail,
			InvalidCode:      ErrInvalidCode,
			NoPendingCode:    ErrNoPendingCode,
			CodeMismatch:     ErrCodeMismatch,
			CodeExpired:      ErrCodeExpired,
			StoreUnavailable: ErrStoreUnavailable,
			SignerFailed:     ErrSignerFailed,
			TokenSinkFailed:  ErrTokenSinkFailed,
		},
	}

	if e.sink != nil {
		deps.PersistToken = func(ctx context.Context, email string, minted internalflows.MintedToken) error {
			err := e.sink.Persist(ctx, *issuedFromMinted(email, minted))
			if err != nil {
				e.logger.Warn("token sink failed, registry entry left to expire",
					zap.String("jti", minted.JTI), zap.Error(err))
			}
			return err
		}
	}

	return deps
}

func (e *Engine) tokenFlowDeps() internalflows.TokenDeps {
	deps := internalflows.TokenDeps{
		ValidJTI: validJTI,
		Status: func(ctx context.Context, jti string) (internalflows.TokenRecord, error) {
			status, err := e.registry.Status(ctx, jti)
			if err != nil {
				if errors.Is(err, tokens.ErrCorruptRecord) {
					e.logger.Warn("corrupt reset token record", zap.String("jti", jti))
					return internalflows.TokenRecord{State: internalflows.TokenStateNotFound}, nil
				}
				return internalflows.TokenRecord{}, err
			}
			return tokenRecord(status), nil
		},
		MarkUsed: func(ctx context.Context, jti string) (bool, error) {
			outcome, err := e.registry.MarkUsed(ctx, jti)
			if errors.Is(err, tokens.ErrCorruptRecord) {
				e.logger.Warn("corrupt reset token record", zap.String("jti", jti))
				return false, nil
			}
			return outcome == tokens.MarkMarked, err
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.TokenMetrics{
			TokenLive:       int(MetricTokenLive),
			TokenNotLive:    int(MetricTokenNotLive),
			TokenMarkedUsed: int(MetricTokenMarkedUsed),
		},
		Events: internalflows.TokenEvents{
			TokenMarkedUsed: auditEventTokenMarkedUsed,
		},
		Errors: internalflows.TokenErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidTokenID:   ErrInvalidTokenID,
			TokenNotFound:    ErrTokenNotFound,
			TokenUsed:        ErrTokenUsed,
			TokenInvalid:     ErrTokenInvalid,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}
	if e.verifier != nil {
		deps.VerifyToken = func(token string) (*jwt.ResetClaims, error) {
			return e.verifier.Verify(token)
		}
	}
	return deps
}

func mapLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrCodeRequestRateLimited):
		return ErrRateLimited
	case errors.Is(err, limiters.ErrLimiterUnavailable):
		return errors.Join(ErrStoreUnavailable, err)
	default:
		return err
	}
}

func verifyOutcome(o codes.Outcome) internalflows.VerifyOutcome {
	switch o {
	case codes.OutcomeValid:
		return internalflows.VerifyValid
	case codes.OutcomeMismatch:
		return internalflows.VerifyMismatch
	case codes.OutcomeExpired:
		return internalflows.VerifyExpired
	default:
		return internalflows.VerifyNoPendingCode
	}
}

func tokenRecord(status tokens.Status) internalflows.TokenRecord {
	record := internalflows.TokenRecord{
		Email:     status.Email,
		CreatedAt: status.CreatedAt,
		ExpiresAt: status.ExpiresAt,
		UsedAt:    status.UsedAt,
	}
	switch status.State {
	case tokens.StateUnused:
		record.State = internalflows.TokenStateUnused
	case tokens.StateUsed:
		record.State = internalflows.TokenStateUsed
	default:
		record.State = internalflows.TokenStateNotFound
	}
	return record
}
