package models

import (
	"context"
)

// Capability names one collaborator slot held by the gateway.
type Capability string

const (
	Maintenance Capability = "maintenance"
	Routes      Capability = "routes"
	Forecasting Capability = "forecasting"
	Fraud       Capability = "fraud"
	Drivers     Capability = "drivers"
	Pricing     Capability = "pricing"
	Chat        Capability = "chat"
	Vision      Capability = "vision"
	Insights    Capability = "insights"

	Warehouse      Capability = "warehouse"
	Sustainability Capability = "sustainability"
	Contracts      Capability = "contracts"
	Documents      Capability = "documents"
	ColdChain      Capability = "coldchain"
	Risk           Capability = "risk"
	Compliance     Capability = "compliance"
)

// LoadOrder is the fixed sequence in which collaborators are loaded at startup.
var LoadOrder = []Capability{
	Maintenance,
	Routes,
	Forecasting,
	Fraud,
	Drivers,
	Pricing,
	Chat,
	Vision,
	Insights,
	Warehouse,
	Sustainability,
	Contracts,
	Documents,
	ColdChain,
	Risk,
	Compliance,
}

// Payload is a request body exactly as the client sent it.
type Payload map[string]any

// Result is the mapping of named fields returned by a collaborator.
type Result map[string]any

// Model is the lifecycle every collaborator shares.
type Model interface {
	Load(ctx context.Context) error

	Ping(ctx context.Context) error

	Close() error
}

type MaintenancePredictor interface {
	Model
	Predict(ctx context.Context, vehicle Payload) (Result, error)
}

type RouteOptimizer interface {
	Model
	Optimize(ctx context.Context, route Payload) (Result, error)
	OptimizeMultiple(ctx context.Context, routes []Payload) ([]Result, error)
}

type DemandForecaster interface {
	Model
	Predict(ctx context.Context, forecast Payload) (Result, error)
	PredictRouteDemand(ctx context.Context, route Payload) (Result, error)
}

type FraudDetector interface {
	Model
	Analyze(ctx context.Context, transaction Payload) (Result, error)
}

type DriverScorer interface {
	Model
	CalculateScore(ctx context.Context, driver Payload) (Result, error)
}

type PricingEngine interface {
	Model
	CalculatePrice(ctx context.Context, pricing Payload) (Result, error)
}

type Chatbot interface {
	Model
	ProcessMessage(ctx context.Context, message Payload) (Result, error)
	// ProcessVoice reads the audio file at path. The caller owns the file.
	ProcessVoice(ctx context.Context, path string) (Result, error)
}

type VisionVerifier interface {
	Model
	VerifyCargo(ctx context.Context, path string) (Result, error)
	VerifyPOD(ctx context.Context, path string) (Result, error)
}

type InsightsGenerator interface {
	Model
	GenerateFleetInsights(ctx context.Context, analytics Payload) (Result, error)
}

type WarehouseAllocator interface {
	Model
	AllocateSlot(ctx context.Context, request Payload) (Result, error)
}

type GreenRouteOptimizer interface {
	Model
	OptimizeGreenRoute(ctx context.Context, route Payload) (Result, error)
}

type BidAdvisor interface {
	Model
	RecommendBid(ctx context.Context, contract Payload) (Result, error)
}

type DocumentReader interface {
	Model
	// ExtractText runs OCR over the document at path. The caller owns the file.
	ExtractText(ctx context.Context, path string) (Result, error)
}

type ColdChainMonitor interface {
	Model
	PredictConditions(ctx context.Context, reading Payload) (Result, error)
}

type RiskAnalyzer interface {
	Model
	AnalyzeRisk(ctx context.Context, subject Payload) (Result, error)
}

type ComplianceChecker interface {
	Model
	CheckSafety(ctx context.Context, check Payload) (Result, error)
}

// Collaborators is the full set of models the gateway dispatches to.
type Collaborators struct {
	Maintenance MaintenancePredictor
	Routes      RouteOptimizer
	Forecasting DemandForecaster
	Fraud       FraudDetector
	Drivers     DriverScorer
	Pricing     PricingEngine
	Chat        Chatbot
	Vision      VisionVerifier
	Insights    InsightsGenerator

	Warehouse      WarehouseAllocator
	Sustainability GreenRouteOptimizer
	Contracts      BidAdvisor
	Documents      DocumentReader
	ColdChain      ColdChainMonitor
	Risk           RiskAnalyzer
	Compliance     ComplianceChecker
}

// ByCapability returns the lifecycle view of every non-nil collaborator.
func (c Collaborators) ByCapability() map[Capability]Model {
	all := map[Capability]Model{}
	add := func(capability Capability, m Model, isNil bool) {
		if !isNil {
			all[capability] = m
		}
	}
	add(Maintenance, c.Maintenance, c.Maintenance == nil)
	add(Routes, c.Routes, c.Routes == nil)
	add(Forecasting, c.Forecasting, c.Forecasting == nil)
	add(Fraud, c.Fraud, c.Fraud == nil)
	add(Drivers, c.Drivers, c.Drivers == nil)
	add(Pricing, c.Pricing, c.Pricing == nil)
	add(Chat, c.Chat, c.Chat == nil)
	add(Vision, c.Vision, c.Vision == nil)
	add(Insights, c.Insights, c.Insights == nil)
	add(Warehouse, c.Warehouse, c.Warehouse == nil)
	add(Sustainability, c.Sustainability, c.Sustainability == nil)
	add(Contracts, c.Contracts, c.Contracts == nil)
	add(Documents, c.Documents, c.Documents == nil)
	add(ColdChain, c.ColdChain, c.ColdChain == nil)
	add(Risk, c.Risk, c.Risk == nil)
	add(Compliance, c.Compliance, c.Compliance == nil)
	return all
}
