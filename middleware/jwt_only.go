package middleware

import (
	"net/http"

	goReset "github.com/MrEthical07/goReset"
)

// RequireSignedToken accepts any correctly signed, unexpired reset token
// without a store round trip. A token already consumed still passes.
func RequireSignedToken(engine *goReset.Engine) func(http.Handler) http.Handler {
	return Guard(engine, ModeSignatureOnly)
}
