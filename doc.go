// Package goReset issues and validates the short-lived, single-use
// credentials of a password-reset flow: a numeric verification code
// delivered by mail and, once the code is verified, a signed reset token
// consumed exactly once by a downstream system.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goReset is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([IdentityResolver], [Notifier], [TokenSink])
// and value types. Code storage, token registry, rate limiting, flow
// orchestration and audit dispatch live under internal/. The ephemeral
// key/value contract lives in package store and is constructor-injected.
//
// # What this package must NOT do
//
//   - Change passwords or manage identities.
//   - Return or log plaintext verification codes.
//   - Retry collaborator calls on its own.
package goReset
