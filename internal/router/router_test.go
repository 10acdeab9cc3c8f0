package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/handler"
	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/proctor"
	"github.com/edquest/proctor-backend/internal/service"
)

type rejectAll struct{}

func (rejectAll) ValidateToken(string) (*service.Claims, error) {
	return nil, errors.New("no tokens in this test")
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveEvent("SESSION_INIT")

	handlers := &Handlers{
		Activity: handler.NewActivityHandler(nil, 1024, log),
		Auth:     handler.NewAuthHandler(nil, log),
		Test:     handler.NewTestHandler(nil, log),
		Admin:    handler.NewAdminHandler(nil, nil, nil, log),
		Monitor:  handler.NewMonitorHandler(nil, nil, log),
		WS:       handler.NewWSHandler(nil, proctor.Deps{}, log, nil),
	}
	return SetupRouter(handlers, Deps{Auth: rejectAll{}, Gatherer: reg, Log: log}, &config.Config{GinMode: gin.TestMode})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthRoute(t *testing.T) {
	w := get(newTestRouter(t), "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsRoute(t *testing.T) {
	w := get(newTestRouter(t), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `proctor_activity_events_total{action="SESSION_INIT"} 1`)
}

func TestProtectedRoutes(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{
		"/api/v1/auth/me",
		"/api/v1/tests",
		"/api/v1/admin/violations",
		"/api/v1/admin/tests/x/monitor",
		"/ws/v1/exams/x/proctor",
	} {
		assert.Equal(t, http.StatusUnauthorized, get(r, path).Code, path)
	}
}

func TestNoRoute(t *testing.T) {
	w := get(newTestRouter(t), "/api/v2/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"NOT_FOUND"`)
}
