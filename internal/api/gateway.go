package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"fleet-ai-gateway/internal/metrics"
	"fleet-ai-gateway/internal/models"
	"fleet-ai-gateway/internal/storage"
	"fleet-ai-gateway/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const probeWorkers = 4

type GatewayService struct {
	models   models.Collaborators
	registry *models.Registry
	uploads  *storage.UploadStore
	validate *validator.Validate
}

func NewGatewayService(collaborators models.Collaborators, registry *models.Registry, uploads *storage.UploadStore) *GatewayService {
	return &GatewayService{
		models:   collaborators,
		registry: registry,
		uploads:  uploads,
		validate: newValidator(),
	}
}

func (s *GatewayService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))

	r.Route("/ai", func(r chi.Router) {
		r.Get("/models", RestHandler(s.ListModels))

		r.Post("/maintenance/predict", RestHandler(s.PredictMaintenance))
		r.Post("/maintenance/batch-predict", RestHandler(s.BatchPredictMaintenance))

		r.Post("/routes/optimize", RestHandler(s.OptimizeRoute))
		r.Post("/routes/multi-optimize", RestHandler(s.OptimizeMultipleRoutes))

		r.Post("/forecasting/demand", RestHandler(s.ForecastDemand))
		r.Post("/forecasting/route-demand", RestHandler(s.ForecastRouteDemand))

		r.Post("/fuel/fraud-detection", RestHandler(s.DetectFuelFraud))

		r.Post("/drivers/score", RestHandler(s.ScoreDriver))

		r.Post("/pricing/calculate", RestHandler(s.CalculatePrice))

		r.Post("/chatbot/message", RestHandler(s.ProcessChatMessage))
		r.Post("/chatbot/voice", RestHandler(s.ProcessVoiceMessage))

		r.Post("/vision/cargo-verification", RestHandler(s.VerifyCargo))
		r.Post("/vision/pod-verification", RestHandler(s.VerifyPOD))

		r.Post("/analytics/fleet-insights", RestHandler(s.GenerateFleetInsights))

		r.Post("/warehouse/allocate-slot", RestHandler(s.AllocateWarehouseSlot))
		r.Post("/sustainability/green-route", RestHandler(s.OptimizeGreenRoute))
		r.Post("/contracts/bid-recommendation", RestHandler(s.RecommendBid))
		r.Post("/documents/ocr", RestHandler(s.ExtractDocumentText))
		r.Post("/coldchain/predict", RestHandler(s.PredictColdChain))
		r.Post("/risk/analyze", RestHandler(s.AnalyzeRisk))
		r.Post("/compliance/safety-check", RestHandler(s.CheckSafety))
	})
}

// Metrics counts every request by matched route pattern and status code.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RequestsTotal.WithLabelValues(route, fmt.Sprint(ww.Status())).Inc()
	})
}

func (s *GatewayService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{Status: "healthy", Timestamp: time.Now()}, nil
}

func (s *GatewayService) ListModels(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.ModelsQuery](r)
	if err != nil {
		return nil, err
	}

	var probes map[models.Capability]error
	if query.Probe {
		probes = s.registry.Probe(r.Context(), probeWorkers)
	}

	statuses := []api.ModelStatus{}
	for _, status := range s.registry.Statuses() {
		if query.Capability != "" && string(status.Capability) != query.Capability {
			continue
		}

		out := api.ModelStatus{
			Capability: string(status.Capability),
			State:      string(status.State),
			Error:      status.Error,
		}
		if !status.LoadedAt.IsZero() {
			loadedAt := status.LoadedAt
			out.LoadedAt = &loadedAt
		}
		if probeErr, probed := probes[status.Capability]; probed {
			reachable := probeErr == nil
			out.Reachable = &reachable
		}
		statuses = append(statuses, out)
	}

	if query.Capability != "" && len(statuses) == 0 {
		return nil, CodedErrorf(http.StatusNotFound, "unknown model '%s'", query.Capability)
	}

	return statuses, nil
}

func (s *GatewayService) PredictMaintenance(r *http.Request) (any, error) {
	const failed = "Prediction failed"

	_, vehicle, err := ParsePayload[api.MaintenanceRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "maintenance prediction error", failed, err)
	}
	if err := s.registry.Ready(models.Maintenance); err != nil {
		return nil, s.failure(r, "maintenance prediction error", failed, err)
	}

	prediction, err := s.models.Maintenance.Predict(r.Context(), vehicle)
	if err != nil {
		return nil, s.failure(r, "maintenance prediction error", failed, err)
	}

	res := readResult(prediction)
	out := api.MaintenancePrediction{
		VehicleId:           vehicle["vehicle_id"],
		BreakdownRisk:       res.get("breakdown_risk"),
		MaintenanceNeeded:   res.get("maintenance_needed"),
		NextMaintenanceDate: res.get("next_maintenance_date"),
		Confidence:          res.get("confidence"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "maintenance prediction error", failed, err)
	}

	return out, nil
}

// BatchPredictMaintenance runs predictions one vehicle at a time. Any failure
// aborts the whole batch.
func (s *GatewayService) BatchPredictMaintenance(r *http.Request) (any, error) {
	const failed = "Batch prediction failed"

	_, vehicles, err := ParsePayloadList[api.MaintenanceRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "batch maintenance prediction error", failed, err)
	}
	if err := s.registry.Ready(models.Maintenance); err != nil {
		return nil, s.failure(r, "batch maintenance prediction error", failed, err)
	}

	predictions := make([]map[string]any, 0, len(vehicles))
	for i, vehicle := range vehicles {
		prediction, err := s.models.Maintenance.Predict(r.Context(), vehicle)
		if err != nil {
			return nil, s.failure(r, "batch maintenance prediction error", failed, fmt.Errorf("vehicle %d: %w", i, err))
		}

		merged := make(map[string]any, len(prediction)+1)
		merged["vehicle_id"] = vehicle["vehicle_id"]
		for k, v := range prediction {
			merged[k] = v
		}
		predictions = append(predictions, merged)
	}

	return api.BatchMaintenanceResponse{Predictions: predictions}, nil
}

func (s *GatewayService) OptimizeRoute(r *http.Request) (any, error) {
	const failed = "Route optimization failed"

	_, route, err := ParsePayload[api.RouteRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "route optimization error", failed, err)
	}
	if err := s.registry.Ready(models.Routes); err != nil {
		return nil, s.failure(r, "route optimization error", failed, err)
	}

	optimized, err := s.models.Routes.Optimize(r.Context(), route)
	if err != nil {
		return nil, s.failure(r, "route optimization error", failed, err)
	}

	res := readResult(optimized)
	out := api.RouteOptimization{
		OriginalDistance:  route["distance"],
		OptimizedDistance: res.get("distance"),
		TimeSaved:         res.get("time_saved"),
		FuelSaved:         res.get("fuel_saved"),
		Waypoints:         res.get("waypoints"),
		TrafficPrediction: res.get("traffic_prediction"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "route optimization error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) OptimizeMultipleRoutes(r *http.Request) (any, error) {
	const failed = "Multi-route optimization failed"

	_, routes, err := ParsePayloadList[api.RouteRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "multi-route optimization error", failed, err)
	}
	if err := s.registry.Ready(models.Routes); err != nil {
		return nil, s.failure(r, "multi-route optimization error", failed, err)
	}

	optimized, err := s.models.Routes.OptimizeMultiple(r.Context(), routes)
	if err != nil {
		return nil, s.failure(r, "multi-route optimization error", failed, err)
	}

	out := api.MultiRouteOptimization{OptimizedRoutes: make([]map[string]any, 0, len(optimized))}
	for _, route := range optimized {
		out.OptimizedRoutes = append(out.OptimizedRoutes, route)
	}

	return out, nil
}

func (s *GatewayService) ForecastDemand(r *http.Request) (any, error) {
	const failed = "Demand forecasting failed"

	_, forecast, err := ParsePayload[api.ForecastRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "demand forecasting error", failed, err)
	}
	if err := s.registry.Ready(models.Forecasting); err != nil {
		return nil, s.failure(r, "demand forecasting error", failed, err)
	}

	prediction, err := s.models.Forecasting.Predict(r.Context(), forecast)
	if err != nil {
		return nil, s.failure(r, "demand forecasting error", failed, err)
	}

	period, ok := forecast["period"]
	if !ok {
		period = "7_days"
	}

	res := readResult(prediction)
	out := api.DemandForecast{
		ForecastPeriod:     period,
		PredictedDemand:    res.get("demand"),
		ConfidenceInterval: res.get("confidence_interval"),
		SeasonalFactors:    res.get("seasonal_factors"),
		Trend:              res.get("trend"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "demand forecasting error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) ForecastRouteDemand(r *http.Request) (any, error) {
	const failed = "Route demand forecasting failed"

	_, route, err := ParsePayload[api.RouteDemandRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "route demand forecasting error", failed, err)
	}
	if err := s.registry.Ready(models.Forecasting); err != nil {
		return nil, s.failure(r, "route demand forecasting error", failed, err)
	}

	prediction, err := s.models.Forecasting.PredictRouteDemand(r.Context(), route)
	if err != nil {
		return nil, s.failure(r, "route demand forecasting error", failed, err)
	}

	res := readResult(prediction)
	out := api.RouteDemandForecast{
		RouteId:            route["route_id"],
		PredictedDemand:    res.get("demand"),
		ConfidenceInterval: res.get("confidence_interval"),
		Trend:              res.get("trend"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "route demand forecasting error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) DetectFuelFraud(r *http.Request) (any, error) {
	const failed = "Fraud detection failed"

	_, transaction, err := ParsePayload[api.FuelTransactionRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "fuel fraud detection error", failed, err)
	}
	if err := s.registry.Ready(models.Fraud); err != nil {
		return nil, s.failure(r, "fuel fraud detection error", failed, err)
	}

	analysis, err := s.models.Fraud.Analyze(r.Context(), transaction)
	if err != nil {
		return nil, s.failure(r, "fuel fraud detection error", failed, err)
	}

	res := readResult(analysis)
	out := api.FraudAnalysis{
		TransactionId:  transaction["transaction_id"],
		FraudRisk:      res.get("fraud_risk"),
		AnomalyScore:   res.get("anomaly_score"),
		RiskFactors:    res.get("risk_factors"),
		Recommendation: res.get("recommendation"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "fuel fraud detection error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) ScoreDriver(r *http.Request) (any, error) {
	const failed = "Driver scoring failed"

	_, driver, err := ParsePayload[api.DriverRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "driver scoring error", failed, err)
	}
	if err := s.registry.Ready(models.Drivers); err != nil {
		return nil, s.failure(r, "driver scoring error", failed, err)
	}

	score, err := s.models.Drivers.CalculateScore(r.Context(), driver)
	if err != nil {
		return nil, s.failure(r, "driver scoring error", failed, err)
	}

	res := readResult(score)
	out := api.DriverScore{
		DriverId:        driver["driver_id"],
		OverallScore:    res.get("overall_score"),
		SafetyScore:     res.get("safety_score"),
		EfficiencyScore: res.get("efficiency_score"),
		FatigueLevel:    res.get("fatigue_level"),
		Recommendations: res.get("recommendations"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "driver scoring error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) CalculatePrice(r *http.Request) (any, error) {
	const failed = "Pricing calculation failed"

	_, pricing, err := ParsePayload[api.PricingRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "dynamic pricing error", failed, err)
	}
	if err := s.registry.Ready(models.Pricing); err != nil {
		return nil, s.failure(r, "dynamic pricing error", failed, err)
	}

	price, err := s.models.Pricing.CalculatePrice(r.Context(), pricing)
	if err != nil {
		return nil, s.failure(r, "dynamic pricing error", failed, err)
	}

	res := readResult(price)
	out := api.PriceQuote{
		BasePrice:        res.get("base_price"),
		DynamicPrice:     res.get("dynamic_price"),
		DemandMultiplier: res.get("demand_multiplier"),
		DistanceFactor:   res.get("distance_factor"),
		WeightFactor:     res.get("weight_factor"),
		UrgencyFactor:    res.get("urgency_factor"),
		PricingBreakdown: res.get("breakdown"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "dynamic pricing error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) ProcessChatMessage(r *http.Request) (any, error) {
	const failed = "Chatbot processing failed"

	_, message, err := ParsePayload[api.ChatMessageRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "chatbot processing error", failed, err)
	}
	if err := s.registry.Ready(models.Chat); err != nil {
		return nil, s.failure(r, "chatbot processing error", failed, err)
	}

	reply, err := s.models.Chat.ProcessMessage(r.Context(), message)
	if err != nil {
		return nil, s.failure(r, "chatbot processing error", failed, err)
	}

	res := readResult(reply)
	out := api.ChatbotReply{
		Response:    res.get("text"),
		Intent:      res.get("intent"),
		Confidence:  res.get("confidence"),
		Actions:     res.getOr("actions", []any{}),
		Suggestions: res.getOr("suggestions", []any{}),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "chatbot processing error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) ProcessVoiceMessage(r *http.Request) (any, error) {
	const failed = "Voice processing failed"

	if err := s.registry.Ready(models.Chat); err != nil {
		return nil, s.failure(r, "voice processing error", failed, err)
	}

	audio, err := s.stageUpload(r, "audio_file", "audio")
	if err != nil {
		return nil, s.failure(r, "voice processing error", failed, err)
	}
	defer audio.Remove()

	reply, err := s.models.Chat.ProcessVoice(r.Context(), audio.Path)
	if err != nil {
		return nil, s.failure(r, "voice processing error", failed, err)
	}

	res := readResult(reply)
	out := api.VoiceReply{
		Transcription: res.get("transcription"),
		Response:      res.get("text"),
		Intent:        res.get("intent"),
		Confidence:    res.get("confidence"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "voice processing error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) VerifyCargo(r *http.Request) (any, error) {
	const failed = "Cargo verification failed"

	if err := s.registry.Ready(models.Vision); err != nil {
		return nil, s.failure(r, "cargo verification error", failed, err)
	}

	image, err := s.stageUpload(r, "image_file", "image")
	if err != nil {
		return nil, s.failure(r, "cargo verification error", failed, err)
	}
	defer image.Remove()

	verification, err := s.models.Vision.VerifyCargo(r.Context(), image.Path)
	if err != nil {
		return nil, s.failure(r, "cargo verification error", failed, err)
	}

	res := readResult(verification)
	out := api.CargoVerification{
		CargoDetected:  res.get("cargo_detected"),
		CargoType:      res.get("cargo_type"),
		ConditionScore: res.get("condition_score"),
		DamageDetected: res.get("damage_detected"),
		Confidence:     res.get("confidence"),
		BoundingBoxes:  res.get("bounding_boxes"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "cargo verification error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) VerifyPOD(r *http.Request) (any, error) {
	const failed = "POD verification failed"

	if err := s.registry.Ready(models.Vision); err != nil {
		return nil, s.failure(r, "POD verification error", failed, err)
	}

	image, err := s.stageUpload(r, "image_file", "image")
	if err != nil {
		return nil, s.failure(r, "POD verification error", failed, err)
	}
	defer image.Remove()

	verification, err := s.models.Vision.VerifyPOD(r.Context(), image.Path)
	if err != nil {
		return nil, s.failure(r, "POD verification error", failed, err)
	}

	res := readResult(verification)
	out := api.PODVerification{
		DeliveryVerified:  res.get("delivery_verified"),
		SignatureDetected: res.get("signature_detected"),
		PackageCondition:  res.get("package_condition"),
		LocationVerified:  res.get("location_verified"),
		Confidence:        res.get("confidence"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "POD verification error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) GenerateFleetInsights(r *http.Request) (any, error) {
	const failed = "Fleet insights generation failed"

	_, analytics, err := ParsePayload[api.FleetInsightsRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "fleet insights error", failed, err)
	}
	if err := s.registry.Ready(models.Insights); err != nil {
		return nil, s.failure(r, "fleet insights error", failed, err)
	}

	insights, err := s.models.Insights.GenerateFleetInsights(r.Context(), analytics)
	if err != nil {
		return nil, s.failure(r, "fleet insights error", failed, err)
	}

	res := readResult(insights)
	out := api.FleetInsights{
		PerformanceTrends: res.get("performance_trends"),
		CostOptimization:  res.get("cost_optimization"),
		RiskAssessment:    res.get("risk_assessment"),
		Recommendations:   res.get("recommendations"),
		KpiPredictions:    res.get("kpi_predictions"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "fleet insights error", failed, err)
	}

	return out, nil
}

// The warehouse, sustainability, contracts, risk and compliance models
// already answer in the shape clients expect, so their results are returned
// as is.

func (s *GatewayService) AllocateWarehouseSlot(r *http.Request) (any, error) {
	const failed = "Warehouse slot allocation failed"

	_, request, err := ParsePayload[api.WarehouseSlotRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "warehouse allocation error", failed, err)
	}
	if err := s.registry.Ready(models.Warehouse); err != nil {
		return nil, s.failure(r, "warehouse allocation error", failed, err)
	}

	allocation, err := s.models.Warehouse.AllocateSlot(r.Context(), request)
	if err != nil {
		return nil, s.failure(r, "warehouse allocation error", failed, err)
	}

	return allocation, nil
}

func (s *GatewayService) OptimizeGreenRoute(r *http.Request) (any, error) {
	const failed = "Green route optimization failed"

	_, route, err := ParsePayload[api.GreenRouteRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "green route error", failed, err)
	}
	if err := s.registry.Ready(models.Sustainability); err != nil {
		return nil, s.failure(r, "green route error", failed, err)
	}

	greenRoute, err := s.models.Sustainability.OptimizeGreenRoute(r.Context(), route)
	if err != nil {
		return nil, s.failure(r, "green route error", failed, err)
	}

	return greenRoute, nil
}

func (s *GatewayService) RecommendBid(r *http.Request) (any, error) {
	const failed = "Bid recommendation failed"

	_, contract, err := ParsePayload[api.BidRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "bid recommendation error", failed, err)
	}
	if err := s.registry.Ready(models.Contracts); err != nil {
		return nil, s.failure(r, "bid recommendation error", failed, err)
	}

	recommendation, err := s.models.Contracts.RecommendBid(r.Context(), contract)
	if err != nil {
		return nil, s.failure(r, "bid recommendation error", failed, err)
	}

	return recommendation, nil
}

func (s *GatewayService) ExtractDocumentText(r *http.Request) (any, error) {
	const failed = "Document OCR failed"

	if err := s.registry.Ready(models.Documents); err != nil {
		return nil, s.failure(r, "document ocr error", failed, err)
	}

	document, err := s.stageUpload(r, "document", "file")
	if err != nil {
		return nil, s.failure(r, "document ocr error", failed, err)
	}
	defer document.Remove()

	ocr, err := s.models.Documents.ExtractText(r.Context(), document.Path)
	if err != nil {
		return nil, s.failure(r, "document ocr error", failed, err)
	}

	res := readResult(ocr)
	out := api.DocumentText{
		Filename:      document.Filename,
		Text:          res.get("text"),
		ExtractedData: res.getOr("extracted_data", map[string]any{}),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "document ocr error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) PredictColdChain(r *http.Request) (any, error) {
	const failed = "Cold chain prediction failed"

	_, reading, err := ParsePayload[api.ColdChainReading](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "cold chain prediction error", failed, err)
	}
	if err := s.registry.Ready(models.ColdChain); err != nil {
		return nil, s.failure(r, "cold chain prediction error", failed, err)
	}

	prediction, err := s.models.ColdChain.PredictConditions(r.Context(), reading)
	if err != nil {
		return nil, s.failure(r, "cold chain prediction error", failed, err)
	}

	res := readResult(prediction)
	out := api.ColdChainPrediction{
		DeliveryId:    reading["delivery_id"],
		Temperature:   reading["temperature"],
		Humidity:      reading["humidity"],
		PredictedTemp: res.get("predicted_temp"),
		Alert:         res.get("alert"),
	}
	if err := res.err(); err != nil {
		return nil, s.failure(r, "cold chain prediction error", failed, err)
	}

	return out, nil
}

func (s *GatewayService) AnalyzeRisk(r *http.Request) (any, error) {
	const failed = "Risk analysis failed"

	_, subject, err := ParsePayload[api.RiskRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "risk analysis error", failed, err)
	}
	if err := s.registry.Ready(models.Risk); err != nil {
		return nil, s.failure(r, "risk analysis error", failed, err)
	}

	analysis, err := s.models.Risk.AnalyzeRisk(r.Context(), subject)
	if err != nil {
		return nil, s.failure(r, "risk analysis error", failed, err)
	}

	return analysis, nil
}

func (s *GatewayService) CheckSafety(r *http.Request) (any, error) {
	const failed = "Safety check failed"

	_, check, err := ParsePayload[api.SafetyCheckRequest](r, s.validate)
	if err != nil {
		return nil, s.failure(r, "safety check error", failed, err)
	}
	if err := s.registry.Ready(models.Compliance); err != nil {
		return nil, s.failure(r, "safety check error", failed, err)
	}

	result, err := s.models.Compliance.CheckSafety(r.Context(), check)
	if err != nil {
		return nil, s.failure(r, "safety check error", failed, err)
	}

	return result, nil
}

// stageUpload streams the first file part found under one of fields to disk.
func (s *GatewayService) stageUpload(r *http.Request, fields ...string) (*storage.StagedFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected a multipart/form-data upload", models.ErrValidation)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing file field '%s'", models.ErrValidation, fields[0])
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed multipart body", models.ErrValidation)
		}

		if part.FileName() == "" || !slices.Contains(fields, part.FormName()) {
			part.Close()
			continue
		}

		staged, err := s.uploads.Stage(r.Context(), part.FileName(), part)
		part.Close()
		if err != nil {
			if errors.Is(err, storage.ErrUploadTooLarge) {
				return nil, err
			}
			if errors.Is(err, storage.ErrIncompleteUpload) {
				return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
			}
			return nil, fmt.Errorf("%w: %v", models.ErrIO, err)
		}

		metrics.UploadBytes.Observe(float64(staged.Size))
		return staged, nil
	}
}

// failure logs err with the route context and converts it into the coded
// error returned to the client. Model and I/O failures only expose the
// route's fixed message.
func (s *GatewayService) failure(r *http.Request, logMsg, message string, err error) error {
	var notReady *models.NotReadyError

	switch {
	case errors.Is(err, models.ErrValidation):
		slog.Info(logMsg, "path", r.URL.Path, "error", err)
		return CodedError(http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrUploadTooLarge):
		slog.Info(logMsg, "path", r.URL.Path, "error", err)
		return CodedError(http.StatusRequestEntityTooLarge, err)
	case errors.As(err, &notReady):
		slog.Warn(logMsg, "path", r.URL.Path, "capability", notReady.Capability, "state", notReady.State)
		return CodedError(http.StatusServiceUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		slog.Error(logMsg, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		return &codedError{err: err, code: http.StatusGatewayTimeout, message: message}
	case errors.Is(err, models.ErrUnavailable):
		slog.Error(logMsg, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		return &codedError{err: err, code: http.StatusServiceUnavailable, message: message}
	default:
		slog.Error(logMsg, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		return &codedError{err: err, code: http.StatusInternalServerError, message: message}
	}
}

type resultReader struct {
	result  models.Result
	missing string
}

func readResult(result models.Result) *resultReader {
	return &resultReader{result: result}
}

// get returns the value stored under key and remembers the first missing key.
func (rr *resultReader) get(key string) any {
	v, ok := rr.result[key]
	if !ok && rr.missing == "" {
		rr.missing = key
	}
	return v
}

func (rr *resultReader) getOr(key string, fallback any) any {
	if v, ok := rr.result[key]; ok {
		return v
	}
	return fallback
}

func (rr *resultReader) err() error {
	if rr.missing != "" {
		return &models.MissingFieldError{Field: rr.missing}
	}
	return nil
}
