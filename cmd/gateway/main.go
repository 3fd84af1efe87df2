package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet-ai-gateway/cmd"
	"fleet-ai-gateway/internal/api"
	"fleet-ai-gateway/internal/config"
	"fleet-ai-gateway/internal/metrics"
	"fleet-ai-gateway/internal/models"
	"fleet-ai-gateway/internal/storage"
)

func createServer(cfg *config.Config, service *api.GatewayService) *http.Server {
	return &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.NewRouter(cfg, service),
	}
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	cmd.InitLogger(cfg)
	shutdownTracer := cmd.InitTracer(cfg)
	metrics.InitMetrics()

	slog.Info("starting fleet ai gateway", "addr", cfg.Addr(), "model_server_url", cfg.ModelServerURL, "upload_dir", cfg.UploadDir)

	modelConfigs, err := cfg.ModelConfigs()
	if err != nil {
		log.Fatalf("error loading model configs: %v", err)
	}

	uploads, err := storage.NewUploadStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatalf("error creating upload dir: %v", err)
	}

	collaborators := models.NewRemoteCollaborators(cfg.ModelServerURL, modelConfigs)
	registry := models.NewRegistry(collaborators)

	// Models are loaded before the listener opens. Failures leave the
	// capability unavailable instead of stopping the gateway.
	registry.LoadAll(context.Background())

	server := createServer(cfg, api.NewGatewayService(collaborators, registry, uploads))

	done := make(chan struct{})
	go func() {
		defer close(done)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("closing models")
		if err := registry.Shutdown(ctx); err != nil {
			slog.Error("error closing models", "error", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			slog.Error("error shutting down tracer", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.Addr(), err)
	}

	<-done
	slog.Info("server stopped")
}
