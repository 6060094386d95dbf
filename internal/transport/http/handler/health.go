package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness checks.
type HealthHandler struct {
	pinger Pinger
}

func NewHealthHandler(p Pinger) *HealthHandler { return &HealthHandler{pinger: p} }

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "ok"})
}
