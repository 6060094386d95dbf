// Package middleware guards HTTP routes that consume a password-reset
// token, such as the endpoint that finally sets the new password.
//
// # Guards
//
//   - [Guard] selects the check from a [Mode].
//   - [RequireSignedToken] checks signature and claims only, no store call.
//   - [RequireResetToken] also requires the registry entry to be unused.
//
// Each guard reads the Authorization bearer token, delegates to the engine
// and stores the verified claims in the request context.
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself.
//   - Mark tokens used. The wrapped handler calls Engine.MarkTokenUsed once
//     its own work has succeeded.
package middleware
