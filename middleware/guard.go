package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/jwt"
)

// Mode selects how much a guard checks.
type Mode uint8

const (
	// ModeLive verifies the token and requires an unused registry entry.
	ModeLive Mode = iota
	// ModeSignatureOnly verifies signature and claims only.
	ModeSignatureOnly
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims a guard verified for this request.
func ClaimsFromContext(ctx context.Context) (*jwt.ResetClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.ResetClaims)
	return claims, ok
}

// Guard rejects requests without a valid reset token. A used token is
// answered with 409, a store outage with 503 and everything else with 401.
func Guard(engine *goReset.Engine, mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var (
				claims *jwt.ResetClaims
				err    error
			)
			switch mode {
			case ModeSignatureOnly:
				claims, err = engine.ParseToken(token)
			default:
				claims, _, err = engine.InspectToken(r.Context(), token)
			}
			if err != nil {
				status, msg := statusFor(err)
				http.Error(w, msg, status)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, goReset.ErrTokenUsed):
		return http.StatusConflict, "token already used"
	case errors.Is(err, goReset.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusUnauthorized, "unauthorized"
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
