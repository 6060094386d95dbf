// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunRequestCode, RunVerifyCode, RunTokenStatus, ...)
// accepts a typed dependency struct of closures and returns results without
// side effects beyond those closures. The Engine builds the dependency
// structs once and stays a thin delegating shell.
//
// # Architecture boundaries
//
// Flows sequence the code manager, token issuer, registry, rate limiter and
// collaborators. They do NOT own any of these resources; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goReset (import cycle).
//   - Put plaintext codes or token strings into audit metadata.
package flows
