package goReset

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
)

const (
	auditEventCodeRequested      = "code_requested"
	auditEventCodeRateLimited    = "code_rate_limited"
	auditEventCodeDeliveryFailed = "code_delivery_failed"
	auditEventCodeVerified       = "code_verified"
	auditEventCodeRejected       = "code_rejected"
	auditEventTokenMinted        = "token_minted"
	auditEventTokenSinkFailed    = "token_sink_failed"
	auditEventTokenMarkedUsed    = "token_marked_used"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput    AuditErrorCode = "invalid_input"
	auditErrUnknownIdentity AuditErrorCode = "unknown_identity"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrNoPendingCode   AuditErrorCode = "no_pending_code"
	auditErrCodeMismatch    AuditErrorCode = "code_mismatch"
	auditErrCodeExpired     AuditErrorCode = "code_expired"
	auditErrTokenNotFound   AuditErrorCode = "token_not_found"
	auditErrTokenUsed       AuditErrorCode = "token_used"
	auditErrTokenInvalid    AuditErrorCode = "token_invalid"
	auditErrDeliveryFailed  AuditErrorCode = "delivery_failed"
	auditErrSinkFailed      AuditErrorCode = "sink_failed"
	auditErrSignerFailed    AuditErrorCode = "signer_failed"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	jti string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	now := e.now().UTC()
	event := AuditEvent{
		ID:        internalaudit.NewID(now),
		Timestamp: now,
		EventType: eventType,
		Email:     email,
		JTI:       jti,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidTokenID):
		return auditErrInvalidInput
	case errors.Is(err, ErrUnknownIdentity):
		return auditErrUnknownIdentity
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrNoPendingCode):
		return auditErrNoPendingCode
	case errors.Is(err, ErrCodeMismatch):
		return auditErrCodeMismatch
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrTokenNotFound):
		return auditErrTokenNotFound
	case errors.Is(err, ErrTokenUsed):
		return auditErrTokenUsed
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrNotifierFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrTokenSinkFailed):
		return auditErrSinkFailed
	case errors.Is(err, ErrSignerFailed):
		return auditErrSignerFailed
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrIdentityUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
