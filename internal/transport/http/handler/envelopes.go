package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenEnvelope wraps a freshly minted reset token.
type TokenEnvelope struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	JTI       string `json:"jti"`
	ExpiresIn int64  `json:"expires_in"`
}

// TokenStatusEnvelope reports a jti's registry state.
type TokenStatusEnvelope struct {
	JTI   string `json:"jti"`
	Live  bool   `json:"live"`
	Used  bool   `json:"used"`
	Email string `json:"email,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Success: false, Error: msg})
}
