// Package http exposes the password-reset engine over a chi router.
//
// Public routes issue and verify codes behind a per-IP token bucket. The
// reset-token routes are meant for the internal service that changes the
// password and should not be reachable from the internet.
package http
