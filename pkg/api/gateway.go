package api

import "time"

// Identifiers (vehicle, route, driver, ...) may be sent either as strings or
// as numbers, so they are kept as any and checked with the identifier tag.

type MaintenanceRequest struct {
	VehicleId any `json:"vehicle_id" validate:"required,identifier"`
}

type MaintenancePrediction struct {
	VehicleId           any `json:"vehicle_id"`
	BreakdownRisk       any `json:"breakdown_risk"`
	MaintenanceNeeded   any `json:"maintenance_needed"`
	NextMaintenanceDate any `json:"next_maintenance_date"`
	Confidence          any `json:"confidence"`
}

type BatchMaintenanceResponse struct {
	Predictions []map[string]any `json:"predictions"`
}

type RouteRequest struct {
	RouteId     any   `json:"route_id,omitempty" validate:"omitempty,identifier"`
	Origin      any   `json:"origin" validate:"required"`
	Destination any   `json:"destination" validate:"required"`
	Waypoints   []any `json:"waypoints,omitempty"`
	Distance    any   `json:"distance,omitempty"`
}

type RouteOptimization struct {
	OriginalDistance  any `json:"original_distance"`
	OptimizedDistance any `json:"optimized_distance"`
	TimeSaved         any `json:"time_saved"`
	FuelSaved         any `json:"fuel_saved"`
	Waypoints         any `json:"waypoints"`
	TrafficPrediction any `json:"traffic_prediction"`
}

type MultiRouteOptimization struct {
	OptimizedRoutes []map[string]any `json:"optimized_routes"`
}

// Period, distance and weight are forwarded as sent. The models accept
// either strings or numbers for them.

type ForecastRequest struct {
	Period any `json:"period,omitempty"`
}

type DemandForecast struct {
	ForecastPeriod     any `json:"forecast_period"`
	PredictedDemand    any `json:"predicted_demand"`
	ConfidenceInterval any `json:"confidence_interval"`
	SeasonalFactors    any `json:"seasonal_factors"`
	Trend              any `json:"trend"`
}

type RouteDemandRequest struct {
	RouteId        any              `json:"route_id" validate:"required,identifier"`
	HistoricalData []map[string]any `json:"historical_data,omitempty"`
}

type RouteDemandForecast struct {
	RouteId            any `json:"route_id"`
	PredictedDemand    any `json:"predicted_demand"`
	ConfidenceInterval any `json:"confidence_interval"`
	Trend              any `json:"trend"`
}

type FuelTransactionRequest struct {
	TransactionId any `json:"transaction_id" validate:"required,identifier"`
}

type FraudAnalysis struct {
	TransactionId  any `json:"transaction_id"`
	FraudRisk      any `json:"fraud_risk"`
	AnomalyScore   any `json:"anomaly_score"`
	RiskFactors    any `json:"risk_factors"`
	Recommendation any `json:"recommendation"`
}

type DriverRequest struct {
	DriverId any `json:"driver_id" validate:"required,identifier"`
}

type DriverScore struct {
	DriverId        any `json:"driver_id"`
	OverallScore    any `json:"overall_score"`
	SafetyScore     any `json:"safety_score"`
	EfficiencyScore any `json:"efficiency_score"`
	FatigueLevel    any `json:"fatigue_level"`
	Recommendations any `json:"recommendations"`
}

type PricingRequest struct {
	Distance any `json:"distance,omitempty"`
	Weight   any `json:"weight,omitempty"`
}

type PriceQuote struct {
	BasePrice        any `json:"base_price"`
	DynamicPrice     any `json:"dynamic_price"`
	DemandMultiplier any `json:"demand_multiplier"`
	DistanceFactor   any `json:"distance_factor"`
	WeightFactor     any `json:"weight_factor"`
	UrgencyFactor    any `json:"urgency_factor"`
	PricingBreakdown any `json:"pricing_breakdown"`
}

type ChatMessageRequest struct {
	Message string `json:"message" validate:"required"`
	UserId  any    `json:"user_id,omitempty" validate:"omitempty,identifier"`
}

type ChatbotReply struct {
	Response    any `json:"response"`
	Intent      any `json:"intent"`
	Confidence  any `json:"confidence"`
	Actions     any `json:"actions"`
	Suggestions any `json:"suggestions"`
}

type VoiceReply struct {
	Transcription any `json:"transcription"`
	Response      any `json:"response"`
	Intent        any `json:"intent"`
	Confidence    any `json:"confidence"`
}

type CargoVerification struct {
	CargoDetected  any `json:"cargo_detected"`
	CargoType      any `json:"cargo_type"`
	ConditionScore any `json:"condition_score"`
	DamageDetected any `json:"damage_detected"`
	Confidence     any `json:"confidence"`
	BoundingBoxes  any `json:"bounding_boxes"`
}

type PODVerification struct {
	DeliveryVerified  any `json:"delivery_verified"`
	SignatureDetected any `json:"signature_detected"`
	PackageCondition  any `json:"package_condition"`
	LocationVerified  any `json:"location_verified"`
	Confidence        any `json:"confidence"`
}

type FleetInsightsRequest struct{}

type FleetInsights struct {
	PerformanceTrends any `json:"performance_trends"`
	CostOptimization  any `json:"cost_optimization"`
	RiskAssessment    any `json:"risk_assessment"`
	Recommendations   any `json:"recommendations"`
	KpiPredictions    any `json:"kpi_predictions"`
}

type WarehouseSlotRequest struct {
	WarehouseId any `json:"warehouse_id" validate:"required,identifier"`
	DeliveryId  any `json:"delivery_id,omitempty" validate:"omitempty,identifier"`
	CargoType   any `json:"cargo_type,omitempty"`
	Weight      any `json:"weight,omitempty"`
}

type GreenRouteRequest struct {
	RouteId any `json:"route_id,omitempty" validate:"omitempty,identifier"`
}

type BidRequest struct {
	ContractId any `json:"contract_id,omitempty" validate:"omitempty,identifier"`
}

type ColdChainReading struct {
	DeliveryId  any `json:"delivery_id" validate:"required,identifier"`
	Temperature any `json:"temperature" validate:"required"`
	Humidity    any `json:"humidity,omitempty"`
}

type ColdChainPrediction struct {
	DeliveryId    any `json:"delivery_id"`
	Temperature   any `json:"temperature"`
	Humidity      any `json:"humidity"`
	PredictedTemp any `json:"predicted_temp"`
	Alert         any `json:"alert"`
}

type RiskRequest struct {
	EntityId any `json:"entity_id,omitempty" validate:"omitempty,identifier"`
}

type SafetyCheckRequest struct {
	DriverId  any `json:"driver_id" validate:"required,identifier"`
	VehicleId any `json:"vehicle_id,omitempty" validate:"omitempty,identifier"`
}

type DocumentText struct {
	Filename      string `json:"filename"`
	Text          any    `json:"text"`
	ExtractedData any    `json:"extracted_data"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ModelsQuery struct {
	Probe      bool   `schema:"probe"`
	Capability string `schema:"capability"`
}

type ModelStatus struct {
	Capability string     `json:"capability"`
	State      string     `json:"state"`
	Error      string     `json:"error,omitempty"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
	Reachable  *bool      `json:"reachable,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
