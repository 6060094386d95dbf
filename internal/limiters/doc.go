// Package limiters provides the fixed-window rate limiter that guards
// verification code issuance.
//
// Counters live in the injected store.Store, so every instance sharing a
// store shares the window. A window opens on the first admitted request and
// does not slide: INCR on every request, TTL applied on the first hit only.
//
// The limiter is nil-safe: calling Check on a nil receiver admits everything.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package.
//   - Decide what happens on rejection; flow functions do that.
package limiters
