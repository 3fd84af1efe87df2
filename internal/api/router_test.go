package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "fleet-ai-gateway/internal/api"
	"fleet-ai-gateway/internal/config"
	"fleet-ai-gateway/internal/models"
	"fleet-ai-gateway/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, environment map[string]string) http.Handler {
	cfg, err := config.LoadConfigFrom(environment)
	require.NoError(t, err)

	collaborators := newFakes().collaborators()
	registry := models.NewRegistry(collaborators)
	registry.LoadAll(context.Background())

	uploads, err := storage.NewUploadStore(t.TempDir(), 1024)
	require.NoError(t, err)

	return backend.NewRouter(cfg, backend.NewGatewayService(collaborators, registry, uploads))
}

func preflight(router http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/ai/maintenance/predict", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCorsAllowedOrigins(t *testing.T) {
	router := newRouter(t, map[string]string{})

	rec := preflight(router, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	rec = preflight(router, "http://localhost:3001")
	assert.Equal(t, "http://localhost:3001", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(router, "http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsConfiguredOrigins(t *testing.T) {
	router := newRouter(t, map[string]string{"ALLOWED_ORIGINS": "https://fleet.example.com"})

	rec := preflight(router, "https://fleet.example.com")
	assert.Equal(t, "https://fleet.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight(router, "http://localhost:5173")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterServesMetrics(t *testing.T) {
	router := newRouter(t, map[string]string{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestTimeout(t *testing.T) {
	var deadlineSet bool
	handler := backend.RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
		<-r.Context().Done()
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, deadlineSet)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
