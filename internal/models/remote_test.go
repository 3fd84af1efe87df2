package models_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleet-ai-gateway/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJson(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func TestRemoteLoadRetries(t *testing.T) {
	var attempts atomic.Int32

	r := chi.NewRouter()
	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			writeJson(w, http.StatusServiceUnavailable, `{"detail":"warming up"}`)
			return
		}
		writeJson(w, http.StatusOK, `{"status":"loaded"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	model := models.NewRemoteModel(models.Maintenance, models.RemoteConfig{
		BaseURL: server.URL, LoadAttempts: 3, LoadDelay: time.Millisecond,
	})

	require.NoError(t, model.Load(context.Background()))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestRemoteLoadGivesUp(t *testing.T) {
	var attempts atomic.Int32

	r := chi.NewRouter()
	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeJson(w, http.StatusInternalServerError, `{"detail":"weights missing"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	model := models.NewRemoteModel(models.Vision, models.RemoteConfig{
		BaseURL: server.URL, LoadAttempts: 2, LoadDelay: time.Millisecond,
	})

	err := model.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestRemoteLoadSingleAttemptByDefault(t *testing.T) {
	var attempts atomic.Int32

	r := chi.NewRouter()
	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeJson(w, http.StatusInternalServerError, `{}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	model := models.NewRemoteModel(models.Chat, models.RemoteConfig{BaseURL: server.URL})
	assert.Error(t, model.Load(context.Background()))
	assert.EqualValues(t, 1, attempts.Load())
}

func TestRemotePredictForwardsPayload(t *testing.T) {
	received := make(chan map[string]any, 1)

	r := chi.NewRouter()
	r.Post("/maintenance/predict", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			writeJson(w, http.StatusBadRequest, `{}`)
			return
		}
		received <- body
		writeJson(w, http.StatusOK, `{"breakdown_risk":0.4,"maintenance_needed":false}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	collaborators := models.NewRemoteCollaborators(server.URL, nil)

	result, err := collaborators.Maintenance.Predict(context.Background(), models.Payload{
		"vehicle_id": "V-1",
		"mileage":    json.Number("120000.50"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.Result{"breakdown_risk": json.Number("0.4"), "maintenance_needed": false}, result)
	assert.Equal(t, map[string]any{"vehicle_id": "V-1", "mileage": json.Number("120000.50")}, <-received)
}

func TestRemoteKeepsLargeIntegers(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/fraud/analyze", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, `{"transaction_id":9007199254740993,"confidence":9007199254740993}`)
	})
	r.Post("/routes/optimize-multiple", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, `[{"route_id":9007199254740993}]`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	c := models.NewRemoteCollaborators(server.URL, nil)

	result, err := c.Fraud.Analyze(context.Background(), models.Payload{})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), result["confidence"])
	assert.Equal(t, json.Number("9007199254740993"), result["transaction_id"])

	routes, err := c.Routes.OptimizeMultiple(context.Background(), []models.Payload{{}})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, json.Number("9007199254740993"), routes[0]["route_id"])
}

func TestRemoteDeadline(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/risk/analyze", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		writeJson(w, http.StatusOK, `{}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	c := models.NewRemoteCollaborators(server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Risk.AnalyzeRisk(ctx, models.Payload{})
	assert.ErrorIs(t, err, models.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteEndpoints(t *testing.T) {
	var mu sync.Mutex
	var hits []string

	r := chi.NewRouter()
	r.Post("/{capability}/{method}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		if chi.URLParam(r, "method") == "optimize-multiple" {
			writeJson(w, http.StatusOK, `[{"distance":1},{"distance":2}]`)
			return
		}
		writeJson(w, http.StatusOK, `{"ok":true}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	c := models.NewRemoteCollaborators(server.URL+"/", nil)
	ctx := context.Background()
	p := models.Payload{}

	_, err := c.Routes.Optimize(ctx, p)
	require.NoError(t, err)
	routes, err := c.Routes.OptimizeMultiple(ctx, []models.Payload{p, p})
	require.NoError(t, err)
	assert.Len(t, routes, 2)
	_, err = c.Forecasting.Predict(ctx, p)
	require.NoError(t, err)
	_, err = c.Forecasting.PredictRouteDemand(ctx, p)
	require.NoError(t, err)
	_, err = c.Fraud.Analyze(ctx, p)
	require.NoError(t, err)
	_, err = c.Drivers.CalculateScore(ctx, p)
	require.NoError(t, err)
	_, err = c.Pricing.CalculatePrice(ctx, p)
	require.NoError(t, err)
	_, err = c.Chat.ProcessMessage(ctx, p)
	require.NoError(t, err)
	_, err = c.Insights.GenerateFleetInsights(ctx, p)
	require.NoError(t, err)
	_, err = c.Warehouse.AllocateSlot(ctx, p)
	require.NoError(t, err)
	_, err = c.Sustainability.OptimizeGreenRoute(ctx, p)
	require.NoError(t, err)
	_, err = c.Contracts.RecommendBid(ctx, p)
	require.NoError(t, err)
	_, err = c.ColdChain.PredictConditions(ctx, p)
	require.NoError(t, err)
	_, err = c.Risk.AnalyzeRisk(ctx, p)
	require.NoError(t, err)
	_, err = c.Compliance.CheckSafety(ctx, p)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/routes/optimize",
		"/routes/optimize-multiple",
		"/forecasting/predict",
		"/forecasting/route-demand",
		"/fraud/analyze",
		"/drivers/score",
		"/pricing/calculate",
		"/chat/message",
		"/insights/fleet-insights",
		"/warehouse/allocate-slot",
		"/sustainability/green-route",
		"/contracts/bid-recommendation",
		"/coldchain/predict",
		"/risk/analyze",
		"/compliance/safety-check",
	}, hits)
}

func TestRemoteFileUpload(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/vision/{method}", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJson(w, http.StatusBadRequest, `{}`)
			return
		}
		defer file.Close()

		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" || filepath.Ext(header.Filename) != ".jpg" {
			writeJson(w, http.StatusBadRequest, `{}`)
			return
		}
		writeJson(w, http.StatusOK, `{"method":"`+chi.URLParam(r, "method")+`"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0600))

	c := models.NewRemoteCollaborators(server.URL, nil)

	result, err := c.Vision.VerifyCargo(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "cargo-verification", result["method"])

	result, err = c.Vision.VerifyPOD(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "pod-verification", result["method"])
}

func TestRemoteDocumentUpload(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/documents/ocr", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJson(w, http.StatusBadRequest, `{}`)
			return
		}
		defer file.Close()

		data, _ := io.ReadAll(file)
		writeJson(w, http.StatusOK, `{"text":"`+string(data)+`","extracted_data":{}}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(path, []byte("INVOICE 42"), 0600))

	c := models.NewRemoteCollaborators(server.URL, nil)

	result, err := c.Documents.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "INVOICE 42", result["text"])
}

func TestRemoteErrors(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/drivers/score", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusInternalServerError, `{"detail":"traceback"}`)
	})
	r.Post("/fraud/analyze", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, `null`)
	})
	r.Post("/pricing/calculate", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, `{"base_price":`)
	})
	server := httptest.NewServer(r)

	c := models.NewRemoteCollaborators(server.URL, nil)
	ctx := context.Background()

	_, err := c.Drivers.CalculateScore(ctx, models.Payload{"driver_id": "D"})
	assert.ErrorIs(t, err, models.ErrUpstream)

	_, err = c.Fraud.Analyze(ctx, models.Payload{})
	assert.ErrorIs(t, err, models.ErrUpstream)

	_, err = c.Pricing.CalculatePrice(ctx, models.Payload{})
	assert.ErrorIs(t, err, models.ErrUpstream)

	server.Close()

	_, err = c.Drivers.CalculateScore(ctx, models.Payload{"driver_id": "D"})
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestRemotePing(t *testing.T) {
	healthy := atomic.Bool{}
	healthy.Store(true)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			writeJson(w, http.StatusOK, `{"status":"ok"}`)
		} else {
			writeJson(w, http.StatusServiceUnavailable, `{}`)
		}
	})
	server := httptest.NewServer(r)
	defer server.Close()

	model := models.NewRemoteModel(models.Insights, models.RemoteConfig{BaseURL: server.URL})
	assert.NoError(t, model.Ping(context.Background()))

	healthy.Store(false)
	assert.ErrorIs(t, model.Ping(context.Background()), models.ErrUnavailable)

	assert.NoError(t, model.Close())
}
