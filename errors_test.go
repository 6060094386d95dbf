package goReset

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrInvalidEmail, KindValidation},
		{ErrInvalidCode, KindValidation},
		{ErrInvalidTokenID, KindValidation},
		{ErrUnknownIdentity, KindNotFound},
		{ErrTokenNotFound, KindNotFound},
		{ErrRateLimited, KindRateLimited},
		{ErrNoPendingCode, KindConflictOrExpired},
		{ErrCodeMismatch, KindConflictOrExpired},
		{ErrCodeExpired, KindConflictOrExpired},
		{ErrTokenUsed, KindConflictOrExpired},
		{ErrTokenInvalid, KindConflictOrExpired},
		{fmt.Errorf("%w: smtp 421", ErrNotifierFailed), KindDependency},
		{fmt.Errorf("%w: timeout", ErrIdentityUnavailable), KindDependency},
		{ErrTokenSinkFailed, KindDependency},
		{errors.Join(ErrStoreUnavailable, errors.New("conn refused")), KindDependency},
		{ErrSignerFailed, KindDependency},
		{ErrEngineNotReady, KindInternal},
		{errors.New("boom"), KindInternal},
	}

	for _, tc := range tests {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
