package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"webp-renditions/internal/startup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, statusHealthy, resp.Status)
	assert.True(t, resp.Ready)
	assert.Equal(t, map[string]bool{"webp": true}, resp.Formats)
	require.NotNil(t, resp.Queue)
	assert.Zero(t, resp.Queue.Pending)
}

func TestHealthCheckDegraded(t *testing.T) {
	s := newTestServer(t)
	s.env.Backend.Unavailable = true

	w := s.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, statusDegraded, resp.Status)
	assert.Equal(t, map[string]bool{"webp": false}, resp.Formats)
}

func TestHealthCheckStarting(t *testing.T) {
	s := newTestServer(t)
	s.h.SetReady(false)

	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, statusStarting, decode[HealthResponse](t, w).Status)

	w = s.do(http.MethodHead, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestLivenessCheck(t *testing.T) {
	s := newTestServer(t)
	s.h.SetReady(false)

	w := s.do(http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode[map[string]string](t, w)["status"])

	w = s.do(http.MethodHead, "/livez", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestReadinessCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, w)["status"])

	s.h.SetReady(false)
	w = s.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", decode[map[string]string](t, w)["status"])
}

func TestGetVersion(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	req := httptest.NewRequest(http.MethodGet, "/api/version", http.NoBody)
	w := httptest.NewRecorder()

	h.GetVersion(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, startup.GetBuildInfo(), decode[startup.BuildInfo](t, w))
}
