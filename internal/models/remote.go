package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fleet-ai-gateway/internal/metrics"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RemoteConfig describes where a capability's model server lives.
type RemoteConfig struct {
	BaseURL      string
	LoadAttempts uint
	LoadDelay    time.Duration
}

// RemoteModel talks to a model server over HTTP. Every capability shares the
// same wire format: POST <base>/<method> with a JSON body (or a multipart
// "file" field for file based methods) answered by a JSON object.
type RemoteModel struct {
	capability Capability
	client     *resty.Client
	cfg        RemoteConfig
	tracer     trace.Tracer
}

func NewRemoteModel(capability Capability, cfg RemoteConfig) *RemoteModel {
	if cfg.LoadAttempts == 0 {
		cfg.LoadAttempts = 1
	}
	if cfg.LoadDelay == 0 {
		cfg.LoadDelay = 500 * time.Millisecond
	}

	return &RemoteModel{
		capability: capability,
		client:     resty.New().SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		cfg:        cfg,
		tracer:     otel.Tracer("models-remote"),
	}
}

func (m *RemoteModel) Load(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "RemoteModel.Load", trace.WithAttributes(attribute.String("capability", string(m.capability))))
	defer span.End()

	err := retry.Do(
		func() error {
			_, err := m.call(ctx, "load", nil)
			if err != nil {
				span.AddEvent("load error, use retry")
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(m.cfg.LoadAttempts),
		retry.Delay(m.cfg.LoadDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("error loading %s model: %w", m.capability, err)
	}
	return nil
}

func (m *RemoteModel) Ping(ctx context.Context) error {
	res, err := m.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("%w: %s model server unreachable: %v", ErrUnavailable, m.capability, err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: %s model server health returned status %d", ErrUnavailable, m.capability, res.StatusCode())
	}
	return nil
}

func (m *RemoteModel) Close() error {
	m.client.GetClient().CloseIdleConnections()
	return nil
}

func (m *RemoteModel) invoke(ctx context.Context, method string, body any) (Result, error) {
	raw, err := m.call(ctx, method, func(r *resty.Request) *resty.Request {
		return r.SetHeader("Content-Type", "application/json").SetBody(body)
	})
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

func (m *RemoteModel) invokeFile(ctx context.Context, method, path string) (Result, error) {
	raw, err := m.call(ctx, method, func(r *resty.Request) *resty.Request {
		return r.SetFile("file", path)
	})
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

func (m *RemoteModel) invokeList(ctx context.Context, method string, body any) ([]Result, error) {
	raw, err := m.call(ctx, method, func(r *resty.Request) *resty.Request {
		return r.SetHeader("Content-Type", "application/json").SetBody(body)
	})
	if err != nil {
		return nil, err
	}

	var results []Result
	if err := decodeJson(raw, &results); err != nil {
		return nil, fmt.Errorf("%w: unable to decode model response: %v", ErrUpstream, err)
	}
	return results, nil
}

func (m *RemoteModel) call(ctx context.Context, method string, build func(*resty.Request) *resty.Request) ([]byte, error) {
	ctx, span := m.tracer.Start(ctx, "RemoteModel."+method, trace.WithAttributes(attribute.String("capability", string(m.capability))))
	defer span.End()

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ModelCallDuration.WithLabelValues(string(m.capability), method, outcome).Observe(time.Since(start).Seconds())
	}()

	req := m.client.R().SetContext(ctx)
	if build != nil {
		req = build(req)
	}

	res, err := req.Post("/" + method)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrUnavailable, m.capability, method, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrUnavailable, m.capability, method, err)
	}

	if !res.IsSuccess() {
		slog.Error("model server returned error", "capability", m.capability, "method", method, "status_code", res.StatusCode(), "body", res.String())
		err := fmt.Errorf("%w: %s.%s returned status %d", ErrUpstream, m.capability, method, res.StatusCode())
		span.RecordError(err)
		return nil, err
	}

	outcome = "ok"
	return res.Body(), nil
}

// decodeJson keeps numbers exactly as the model server sent them.
func decodeJson(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func decodeResult(raw []byte) (Result, error) {
	var result Result
	if err := decodeJson(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: unable to decode model response: %v", ErrUpstream, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: model returned an empty response", ErrUpstream)
	}
	return result, nil
}

type remoteMaintenance struct{ *RemoteModel }

func (m remoteMaintenance) Predict(ctx context.Context, vehicle Payload) (Result, error) {
	return m.invoke(ctx, "predict", vehicle)
}

type remoteRoutes struct{ *RemoteModel }

func (m remoteRoutes) Optimize(ctx context.Context, route Payload) (Result, error) {
	return m.invoke(ctx, "optimize", route)
}

func (m remoteRoutes) OptimizeMultiple(ctx context.Context, routes []Payload) ([]Result, error) {
	return m.invokeList(ctx, "optimize-multiple", routes)
}

type remoteForecasting struct{ *RemoteModel }

func (m remoteForecasting) Predict(ctx context.Context, forecast Payload) (Result, error) {
	return m.invoke(ctx, "predict", forecast)
}

func (m remoteForecasting) PredictRouteDemand(ctx context.Context, route Payload) (Result, error) {
	return m.invoke(ctx, "route-demand", route)
}

type remoteFraud struct{ *RemoteModel }

func (m remoteFraud) Analyze(ctx context.Context, transaction Payload) (Result, error) {
	return m.invoke(ctx, "analyze", transaction)
}

type remoteDrivers struct{ *RemoteModel }

func (m remoteDrivers) CalculateScore(ctx context.Context, driver Payload) (Result, error) {
	return m.invoke(ctx, "score", driver)
}

type remotePricing struct{ *RemoteModel }

func (m remotePricing) CalculatePrice(ctx context.Context, pricing Payload) (Result, error) {
	return m.invoke(ctx, "calculate", pricing)
}

type remoteChat struct{ *RemoteModel }

func (m remoteChat) ProcessMessage(ctx context.Context, message Payload) (Result, error) {
	return m.invoke(ctx, "message", message)
}

func (m remoteChat) ProcessVoice(ctx context.Context, path string) (Result, error) {
	return m.invokeFile(ctx, "voice", path)
}

type remoteVision struct{ *RemoteModel }

func (m remoteVision) VerifyCargo(ctx context.Context, path string) (Result, error) {
	return m.invokeFile(ctx, "cargo-verification", path)
}

func (m remoteVision) VerifyPOD(ctx context.Context, path string) (Result, error) {
	return m.invokeFile(ctx, "pod-verification", path)
}

type remoteInsights struct{ *RemoteModel }

func (m remoteInsights) GenerateFleetInsights(ctx context.Context, analytics Payload) (Result, error) {
	return m.invoke(ctx, "fleet-insights", analytics)
}

type remoteWarehouse struct{ *RemoteModel }

func (m remoteWarehouse) AllocateSlot(ctx context.Context, request Payload) (Result, error) {
	return m.invoke(ctx, "allocate-slot", request)
}

type remoteSustainability struct{ *RemoteModel }

func (m remoteSustainability) OptimizeGreenRoute(ctx context.Context, route Payload) (Result, error) {
	return m.invoke(ctx, "green-route", route)
}

type remoteContracts struct{ *RemoteModel }

func (m remoteContracts) RecommendBid(ctx context.Context, contract Payload) (Result, error) {
	return m.invoke(ctx, "bid-recommendation", contract)
}

type remoteDocuments struct{ *RemoteModel }

func (m remoteDocuments) ExtractText(ctx context.Context, path string) (Result, error) {
	return m.invokeFile(ctx, "ocr", path)
}

type remoteColdChain struct{ *RemoteModel }

func (m remoteColdChain) PredictConditions(ctx context.Context, reading Payload) (Result, error) {
	return m.invoke(ctx, "predict", reading)
}

type remoteRisk struct{ *RemoteModel }

func (m remoteRisk) AnalyzeRisk(ctx context.Context, subject Payload) (Result, error) {
	return m.invoke(ctx, "analyze", subject)
}

type remoteCompliance struct{ *RemoteModel }

func (m remoteCompliance) CheckSafety(ctx context.Context, check Payload) (Result, error) {
	return m.invoke(ctx, "safety-check", check)
}

// NewRemoteCollaborators builds one remote model per capability. Capabilities
// missing from configs fall back to <defaultURL>/<capability>.
func NewRemoteCollaborators(defaultURL string, configs map[Capability]RemoteConfig) Collaborators {
	remote := func(capability Capability) *RemoteModel {
		cfg, ok := configs[capability]
		if !ok || cfg.BaseURL == "" {
			cfg.BaseURL = strings.TrimRight(defaultURL, "/") + "/" + string(capability)
		}
		return NewRemoteModel(capability, cfg)
	}

	return Collaborators{
		Maintenance: remoteMaintenance{remote(Maintenance)},
		Routes:      remoteRoutes{remote(Routes)},
		Forecasting: remoteForecasting{remote(Forecasting)},
		Fraud:       remoteFraud{remote(Fraud)},
		Drivers:     remoteDrivers{remote(Drivers)},
		Pricing:     remotePricing{remote(Pricing)},
		Chat:        remoteChat{remote(Chat)},
		Vision:      remoteVision{remote(Vision)},
		Insights:    remoteInsights{remote(Insights)},

		Warehouse:      remoteWarehouse{remote(Warehouse)},
		Sustainability: remoteSustainability{remote(Sustainability)},
		Contracts:      remoteContracts{remote(Contracts)},
		Documents:      remoteDocuments{remote(Documents)},
		ColdChain:      remoteColdChain{remote(ColdChain)},
		Risk:           remoteRisk{remote(Risk)},
		Compliance:     remoteCompliance{remote(Compliance)},
	}
}
