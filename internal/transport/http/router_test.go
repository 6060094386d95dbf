package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/internal/config"
	"github.com/MrEthical07/goReset/internal/transport/http/handler"
	"github.com/MrEthical07/goReset/metrics/export/prometheus"
	"github.com/MrEthical07/goReset/store"
)

type outbox struct {
	mu   sync.Mutex
	msgs []goReset.CodeMessage
}

func (o *outbox) SendCode(_ context.Context, msg goReset.CodeMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last(t *testing.T) goReset.CodeMessage {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

func newTestRouter(t *testing.T) (*Router, *outbox) {
	t.Helper()

	engineCfg := goReset.DefaultConfig()
	engineCfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	engineCfg.Sweep.Enabled = false
	engineCfg.RateLimit.MaxRequests = 2

	mail := &outbox{}
	engine, err := goReset.New().
		WithConfig(engineCfg).
		WithStore(store.NewMemory()).
		WithIdentityResolver(goReset.IdentityResolverFunc(func(_ context.Context, email string) (bool, error) {
			return email == "a@x.com", nil
		})).
		WithNotifier(mail).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	cfg := &config.Config{
		HTTP:      config.HTTP{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimit{HTTPRate: 100, HTTPBurst: 100},
	}
	router := NewRouter(cfg, Deps{
		Service: engine,
		Metrics: prometheus.NewPrometheusExporter(engine).Handler(),
	})
	t.Cleanup(router.Stop)
	return router, mail
}

func do(r http.Handler, method, path, body, ip string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Real-Ip", ip)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterFullResetFlow(t *testing.T) {
	r, mail := newTestRouter(t)

	rec := do(r, http.MethodPost, "/v1/password-reset/code", `{"email":"a@x.com"}`, "198.51.100.1")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	code := mail.last(t).Code
	rec = do(r, http.MethodPost, "/v1/password-reset/verify", `{"email":"a@x.com","code":"`+code+`"}`, "198.51.100.1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tok handler.TokenEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, int64(900), tok.ExpiresIn)

	rec = do(r, http.MethodGet, "/v1/reset-tokens/"+tok.JTI, "", "10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	var status handler.TokenStatusEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, handler.TokenStatusEnvelope{JTI: tok.JTI, Live: true, Email: "a@x.com"}, status)

	for i := 0; i < 2; i++ {
		rec = do(r, http.MethodPost, "/v1/reset-tokens/"+tok.JTI+"/use", "", "10.0.0.1")
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec = do(r, http.MethodGet, "/v1/reset-tokens/"+tok.JTI, "", "10.0.0.1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, handler.TokenStatusEnvelope{JTI: tok.JTI, Used: true}, status)

	rec = do(r, http.MethodPost, "/v1/password-reset/verify", `{"email":"a@x.com","code":"`+code+`"}`, "198.51.100.1")
	assert.Equal(t, http.StatusConflict, rec.Code, "code is single use")
}

func TestRouterEngineRateLimitIsPerClientIP(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		rec := do(r, http.MethodPost, "/v1/password-reset/code", `{"email":"a@x.com"}`, "198.51.100.7")
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := do(r, http.MethodPost, "/v1/password-reset/code", `{"email":"a@x.com"}`, "198.51.100.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(r, http.MethodPost, "/v1/password-reset/code", `{"email":"a@x.com"}`, "198.51.100.8")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRouterUnknownEmail(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodPost, "/v1/password-reset/code", `{"email":"ghost@x.com"}`, "198.51.100.1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/healthz", "", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)

	_ = do(r, http.MethodPost, "/v1/password-reset/code", `{"email":"a@x.com"}`, "198.51.100.1")
	rec = do(r, http.MethodGet, "/metrics", "", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goreset_code_requested_total 1")
}

func TestRouterCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/password-reset/code", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
