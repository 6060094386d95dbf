// Package internal contains helpers private to goReset, chiefly the secure
// random generation of verification codes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - codes: verification code issue / verify / discard
//   - config: daemon configuration loading (env, flags, .env)
//   - flows: flow orchestrators behind every Engine operation
//   - infrastructure: SMTP notifier and DynamoDB identity/token adapters
//   - limiters: code-issuance fixed-window limiter
//   - tokens: reset token minting and single-use registry
//   - transport: HTTP surface of the daemon
//
// # What this package must NOT do
//
//   - Export types that appear in the public goReset API.
//   - Be imported by any package outside the goReset module.
package internal
