package middleware

import (
	"net/http"

	goReset "github.com/MrEthical07/goReset"
)

// ClientIP records the caller's IP in the request context for the engine's
// rate limiter and audit events.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goReset.WithClientIP(r.Context(), realIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
