package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	goReset "github.com/MrEthical07/goReset"
)

// httpError maps engine errors to a status and a client-safe message.
// Collaborator detail never reaches the response body.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goReset.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid email")
	case errors.Is(err, goReset.ErrInvalidCode), errors.Is(err, goReset.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, "invalid code")
	case errors.Is(err, goReset.ErrInvalidTokenID):
		writeError(w, http.StatusBadRequest, "invalid token id")
	case errors.Is(err, goReset.ErrUnknownIdentity):
		writeError(w, http.StatusNotFound, "email not registered")
	case errors.Is(err, goReset.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token not found")
	case errors.Is(err, goReset.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, goReset.ErrNoPendingCode):
		writeError(w, http.StatusConflict, "no pending code")
	case errors.Is(err, goReset.ErrTokenUsed):
		writeError(w, http.StatusConflict, "token already used")
	case errors.Is(err, goReset.ErrCodeExpired):
		writeError(w, http.StatusGone, "code expired")
	case errors.Is(err, goReset.ErrNotifierFailed):
		writeError(w, http.StatusBadGateway, "could not send code")
	case errors.Is(err, goReset.ErrStoreUnavailable),
		errors.Is(err, goReset.ErrIdentityUnavailable),
		errors.Is(err, goReset.ErrEngineNotReady):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// retryAfterSeconds rounds d up to whole seconds, minimum one.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
