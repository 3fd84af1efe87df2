package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Requests served by the gateway, by route and status code.",
	}, []string{"route", "code"})

	ModelCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_model_call_duration_seconds",
		Help:    "Latency of calls to model servers in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"capability", "method", "outcome"})

	ModelReady = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_model_ready",
		Help: "1 if the model for a capability is loaded and ready, 0 otherwise.",
	}, []string{"capability"})

	UploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_upload_bytes",
		Help:    "Size of staged uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})
)

func InitMetrics() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ModelCallDuration)
	prometheus.MustRegister(ModelReady)
	prometheus.MustRegister(UploadBytes)
}
