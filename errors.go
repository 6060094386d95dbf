package goReset

import "errors"

var (
	// ErrInvalidEmail is returned when an email is missing or malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidCode is returned when a submitted code is empty or not numeric.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrInvalidTokenID is returned when a jti is empty or malformed.
	ErrInvalidTokenID = errors.New("invalid token id")

	// ErrUnknownIdentity is returned when the identity resolver does not know the email.
	ErrUnknownIdentity = errors.New("unknown identity")
	// ErrTokenNotFound is returned when a jti is unknown or has lapsed.
	ErrTokenNotFound = errors.New("reset token not found")

	// ErrRateLimited is returned when the client exhausted its code-request window.
	ErrRateLimited = errors.New("code request rate limited")

	// ErrNoPendingCode is returned when no live code exists for the email.
	ErrNoPendingCode = errors.New("no pending verification code")
	// ErrCodeMismatch is returned when the submitted code differs from the pending one.
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrCodeExpired is returned when the pending code lapsed before submission.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrTokenUsed is returned when a token was already consumed.
	ErrTokenUsed = errors.New("reset token already used")
	// ErrTokenInvalid is returned when a token fails signature, expiry or purpose checks.
	ErrTokenInvalid = errors.New("invalid reset token")

	// ErrNotifierFailed is returned when code delivery failed. The pending code was rolled back.
	ErrNotifierFailed = errors.New("code delivery failed")
	// ErrIdentityUnavailable is returned when the identity resolver errored.
	ErrIdentityUnavailable = errors.New("identity resolver unavailable")
	// ErrTokenSinkFailed is returned when the token sink could not persist a minted token.
	ErrTokenSinkFailed = errors.New("token sink persistence failed")
	// ErrStoreUnavailable is returned when the ephemeral store errored.
	ErrStoreUnavailable = errors.New("ephemeral store unavailable")
	// ErrSignerFailed is returned when a reset token could not be signed.
	ErrSignerFailed = errors.New("reset token signing failed")

	// ErrEngineNotReady is returned when an Engine method is called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the coarse classification callers map to responses.
type ErrorKind uint8

const (
	// KindNone is the kind of a nil error.
	KindNone ErrorKind = iota
	// KindValidation covers malformed input.
	KindValidation
	// KindNotFound covers unknown identities and unknown jtis.
	KindNotFound
	// KindRateLimited covers limiter rejections.
	KindRateLimited
	// KindConflictOrExpired covers code mismatch/expiry and used or invalid tokens.
	KindConflictOrExpired
	// KindDependency covers notifier, resolver, sink, store and signer failures.
	KindDependency
	// KindInternal covers anything unclassified.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limit_exceeded"
	case KindConflictOrExpired:
		return "conflict_or_expired"
	case KindDependency:
		return "dependency_failure"
	default:
		return "internal"
	}
}

// Classify maps err to its ErrorKind. Wrapped errors are matched with errors.Is.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrInvalidTokenID):
		return KindValidation
	case errors.Is(err, ErrUnknownIdentity),
		errors.Is(err, ErrTokenNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNoPendingCode),
		errors.Is(err, ErrCodeMismatch),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrTokenUsed),
		errors.Is(err, ErrTokenInvalid):
		return KindConflictOrExpired
	case errors.Is(err, ErrNotifierFailed),
		errors.Is(err, ErrIdentityUnavailable),
		errors.Is(err, ErrTokenSinkFailed),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrSignerFailed):
		return KindDependency
	default:
		return KindInternal
	}
}
