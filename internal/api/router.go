package api

import (
	"context"
	"net/http"
	"time"

	"fleet-ai-gateway/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gateway's HTTP handler with CORS, request logging,
// metrics and the per-request deadline installed ahead of the routes.
func NewRouter(cfg *config.Config, service *GatewayService) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	if cfg.RequestTimeout > 0 {
		r.Use(RequestTimeout(cfg.RequestTimeout))
	}

	r.Handle("/metrics", promhttp.Handler())
	service.AddRoutes(r)

	return r
}

// RequestTimeout bounds the request context. It never writes a response
// itself: handlers see context.DeadlineExceeded from the model call and
// answer with 504.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
