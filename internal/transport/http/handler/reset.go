package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	goReset "github.com/MrEthical07/goReset"
)

// ResetService is the code half of the engine.
type ResetService interface {
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*goReset.IssuedToken, error)
	RetryAfter(ctx context.Context, email string) time.Duration
}

type codeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,numeric"`
}

// PasswordResetHandler serves code issuance and verification.
type PasswordResetHandler struct {
	svc    ResetService
	logger *zap.Logger
}

func NewPasswordResetHandler(svc ResetService, logger *zap.Logger) *PasswordResetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordResetHandler{svc: svc, logger: logger}
}

// RequestCode answers 202 once the code is on its way.
func (h *PasswordResetHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.RequestCode(r.Context(), req.Email); err != nil {
		if errors.Is(err, goReset.ErrRateLimited) {
			w.Header().Set("Retry-After", retryAfterSeconds(h.svc.RetryAfter(r.Context(), req.Email)))
		}
		h.logFailure("request code", err)
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Success: true, Message: "code sent"})
}

// Verify exchanges a correct code for a reset token.
func (h *PasswordResetHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issued, err := h.svc.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		h.logFailure("verify code", err)
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{
		Success:   true,
		Token:     issued.Token,
		JTI:       issued.JTI,
		ExpiresIn: int64(issued.ExpiresIn / time.Second),
	})
}

func (h *PasswordResetHandler) logFailure(op string, err error) {
	switch goReset.Classify(err) {
	case goReset.KindDependency, goReset.KindInternal:
		h.logger.Error(op+" failed", zap.Error(err))
	}
}
