package middleware

import (
	"net/http"

	goReset "github.com/MrEthical07/goReset"
)

// RequireResetToken accepts a reset token only while its registry entry is
// unused.
func RequireResetToken(engine *goReset.Engine) func(http.Handler) http.Handler {
	return Guard(engine, ModeLive)
}
