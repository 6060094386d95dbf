package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	goReset "github.com/MrEthical07/goReset"
)

// TokenService is the registry half of the engine.
type TokenService interface {
	ValidateToken(ctx context.Context, jti string) (goReset.TokenLiveness, error)
	TokenStatus(ctx context.Context, jti string) (goReset.TokenStatus, error)
	MarkTokenUsed(ctx context.Context, jti string) error
}

// TokenHandler lets the downstream consumer check and consume a jti.
type TokenHandler struct {
	svc TokenService
}

func NewTokenHandler(svc TokenService) *TokenHandler {
	return &TokenHandler{svc: svc}
}

func (h *TokenHandler) Status(w http.ResponseWriter, r *http.Request) {
	jti := chi.URLParam(r, "jti")

	liveness, err := h.svc.ValidateToken(r.Context(), jti)
	if err != nil {
		httpError(w, err)
		return
	}
	status, err := h.svc.TokenStatus(r.Context(), jti)
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenStatusEnvelope{
		JTI:   jti,
		Live:  liveness.Live,
		Used:  status.State == goReset.TokenUsed,
		Email: liveness.Email,
	})
}

// Use consumes jti; repeats also answer 204.
func (h *TokenHandler) Use(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkTokenUsed(r.Context(), chi.URLParam(r, "jti")); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
