package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/lesion-api/internal/config"
	"github.com/Brownie44l1/lesion-api/internal/handlers"
	"github.com/Brownie44l1/lesion-api/internal/model"
	"github.com/Brownie44l1/lesion-api/internal/report"
	"github.com/Brownie44l1/lesion-api/internal/services"
)

func main() {
	config.InitLogger()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded",
		"port", cfg.Server.Port,
		"gin_mode", cfg.Server.Mode,
		"model_path", cfg.Model.Path,
		"layout", cfg.Model.Layout,
	)

	models := model.NewManager(cfg.Model.Path, model.ONNXLoader(cfg.Model.ONNXOptions()), slog.Default())
	defer func() {
		if err := models.Close(); err != nil {
			slog.Error("Failed to release model", "error", err)
		}
		if err := model.ShutdownRuntime(); err != nil {
			slog.Error("Failed to shut down onnxruntime", "error", err)
		}
	}()

	// The service starts without a model; /analyze answers 503 and
	// retries the load until the artifact appears.
	if _, err := models.EnsureLoaded(context.Background()); err != nil {
		slog.Warn("Starting without a model", "error", err)
	}

	gin.SetMode(cfg.Server.Mode)

	analyzer := services.NewAnalyzer(models, slog.Default())
	handler := handlers.NewHandler(analyzer, report.NewRenderer(), cfg.Model.Type)
	router := handlers.NewRouter(handler, handlers.RouterConfig{
		AllowedOrigins: cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", "port", cfg.Server.Port)
		slog.Info("Endpoints",
			"health", "GET /health",
			"analyze", "POST /analyze (multipart field \"image\")",
			"report", "POST /generate_report",
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(server, cfg.Server.ShutdownTimeout)
}

func waitForShutdown(server *http.Server, timeout time.Duration) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server gracefully stopped")
}
