package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	RequestCode CodeRequestDeps
	VerifyCode  CodeVerifyDeps
	Token       TokenDeps
}

// AuditFunc emits one audit event. metadata is evaluated lazily so disabled
// audit costs nothing.
type AuditFunc func(ctx context.Context, event string, success bool, email, jti string, err error, metadata func() map[string]string)

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopObserve(int, time.Duration) {}
