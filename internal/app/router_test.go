package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lensworks/internal/observability"
	"github.com/lensworks/lensworks/internal/shared"
)

func testConfig() *Config {
	return &Config{AppEnv: "test", RateLimitPerMinute: 0}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := NewRouter(RouterParams{Logger: discardLogger(), Config: testConfig(), Metrics: observability.NewMetrics()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "lensworks_http_requests_total")
}

func TestRouterReadiness(t *testing.T) {
	checks := []ReadinessCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }},
	}
	h := NewRouter(RouterParams{Logger: discardLogger(), Config: testConfig(), Readiness: checks})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "ok", body.Data["postgres"])
	assert.Equal(t, "unavailable", body.Data["redis"])
}

func TestRouterUnknownRouteUsesEnvelope(t *testing.T) {
	h := NewRouter(RouterParams{Logger: discardLogger(), Config: testConfig()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"route not found"}`, rr.Body.String())
}

func TestActorMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(ActorMiddleware)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(shared.ActorFromContext(r.Context()).ID)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "42\n", rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "0\n", rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "abc")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{PGDSN: "postgres://x", PGMaxConns: 2, PGMinConns: 4, IdempotencyTTL: 1}
	assert.Error(t, cfg.validate())
	cfg.PGMinConns = 1
	assert.NoError(t, cfg.validate())
	cfg.IdempotencyTTL = 0
	assert.Error(t, cfg.validate())
}
