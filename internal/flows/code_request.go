package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IssuedCode is what the code manager hands back for delivery.
type IssuedCode struct {
	Value     string
	ExpiresIn time.Duration
}

type CodeRequestMetrics struct {
	CodeRequested       int
	CodeRateLimited     int
	CodeUnknownIdentity int
	CodeDeliveryFailed  int
}

type CodeRequestEvents struct {
	CodeRequested      string
	CodeRateLimited    string
	CodeDeliveryFailed string
}

type CodeRequestErrors struct {
	EngineNotReady      error
	InvalidEmail        error
	RateLimited         error
	UnknownIdentity     error
	IdentityUnavailable error
	StoreUnavailable    error
	NotifierFailed      error
}

// CodeRequestDeps is everything RunRequestCode touches.
type CodeRequestDeps struct {
	ClientIPFromContext func(context.Context) string
	ValidEmail          func(string) bool

	CheckLimiter    func(ctx context.Context, client, email string) error
	MapLimiterError func(error) error

	IdentityExists func(ctx context.Context, email string) (bool, error)

	IssueCode   func(ctx context.Context, email string) (IssuedCode, error)
	DiscardCode func(ctx context.Context, email string) error
	SendCode    func(ctx context.Context, email string, code IssuedCode) error

	LogRollbackFailure func(email string, err error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics CodeRequestMetrics
	Events  CodeRequestEvents
	Errors  CodeRequestErrors
}

// RunRequestCode rate-limits the caller, resolves the email, issues a fresh
// code and hands it to the notifier. A failed delivery discards the code.
func RunRequestCode(ctx context.Context, email string, deps CodeRequestDeps) error {
	normalizeCodeRequestDeps(&deps)

	if deps.CheckLimiter == nil || deps.IdentityExists == nil || deps.IssueCode == nil || deps.SendCode == nil {
		return deps.Errors.EngineNotReady
	}
	if !deps.ValidEmail(email) {
		return deps.Errors.InvalidEmail
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.CheckLimiter(ctx, ip, email); err != nil {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.CodeRateLimited)
			deps.EmitAudit(ctx, deps.Events.CodeRateLimited, false, email, "", mapped, nil)
		} else {
			deps.EmitAudit(ctx, deps.Events.CodeRequested, false, email, "", mapped, func() map[string]string {
				return map[string]string{"stage": "limiter"}
			})
		}
		return mapped
	}

	exists, err := deps.IdentityExists(ctx, email)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		wrapped := fmt.Errorf("%w: %v", deps.Errors.IdentityUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.CodeRequested, false, email, "", wrapped, func() map[string]string {
			return map[string]string{"stage": "identity"}
		})
		return wrapped
	}
	if !exists {
		deps.MetricInc(deps.Metrics.CodeUnknownIdentity)
		deps.EmitAudit(ctx, deps.Events.CodeRequested, false, email, "", deps.Errors.UnknownIdentity, nil)
		return deps.Errors.UnknownIdentity
	}

	code, err := deps.IssueCode(ctx, email)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.CodeRequested, false, email, "", wrapped, func() map[string]string {
			return map[string]string{"stage": "issue"}
		})
		return wrapped
	}

	if err := deps.SendCode(ctx, email, code); err != nil {
		if deps.DiscardCode != nil {
			if discardErr := deps.DiscardCode(ctx, email); discardErr != nil {
				deps.LogRollbackFailure(email, discardErr)
			}
		}
		wrapped := fmt.Errorf("%w: %v", deps.Errors.NotifierFailed, err)
		deps.MetricInc(deps.Metrics.CodeDeliveryFailed)
		deps.EmitAudit(ctx, deps.Events.CodeDeliveryFailed, false, email, "", wrapped, nil)
		return wrapped
	}

	deps.MetricInc(deps.Metrics.CodeRequested)
	deps.EmitAudit(ctx, deps.Events.CodeRequested, true, email, "", nil, func() map[string]string {
		return map[string]string{"expires_in": code.ExpiresIn.String()}
	})
	return nil
}

func normalizeCodeRequestDeps(deps *CodeRequestDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.ValidEmail == nil {
		deps.ValidEmail = func(s string) bool { return s != "" }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.LogRollbackFailure == nil {
		deps.LogRollbackFailure = func(string, error) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
