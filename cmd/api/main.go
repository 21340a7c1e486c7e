package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afiyalink/afiyalink-assistant/cmd/mainconfig"
	"github.com/afiyalink/afiyalink-assistant/internal/api/router"
	"github.com/afiyalink/afiyalink-assistant/internal/app/bootstrap"
	appconfig "github.com/afiyalink/afiyalink-assistant/internal/config"
	"github.com/afiyalink/afiyalink-assistant/internal/http/handlers"
	"github.com/afiyalink/afiyalink-assistant/internal/translation"
	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/internal/webchat"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const (
	transcriptPerSession = 50
	transcriptTTL        = 24 * time.Hour
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting afiyalink health assistant",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, registry := setupMetrics()
	rt, err := bootstrap.BuildRuntime(ctx, cfg, awsCfg, registry, logger)
	if err != nil {
		logger.Error("failed to build triage runtime", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           buildHandler(cfg, rt, metricsHandler, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long enough for a full ladder run plus translation.
		WriteTimeout: cfg.MaxResponseTime + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Let queued alerts and audit writes finish before closing their clients.
	rt.Pipeline.Wait()
	if err := rt.Close(); err != nil {
		logger.Warn("runtime close reported errors", "error", err)
	}

	logger.Info("server stopped")
}

// setupMetrics returns a private registry carrying the Go and process
// collectors plus the handler that serves it.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), reg
}

func buildHandler(cfg *appconfig.Config, rt *bootstrap.Runtime, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	var audit handlers.AuditQuerier
	if rt.Audit != nil {
		audit = rt.Audit
	}

	return router.New(&router.Config{
		Logger:    logger,
		Triage:    triage.NewHandler(rt.Pipeline, logger),
		Translate: translation.NewHandler(rt.Translation, logger),
		WebChat: webchat.NewHandler(
			rt.Pipeline,
			webchat.NewMemoryTranscript(transcriptPerSession, transcriptTTL),
			nil,
			logger,
		),
		AdminOps:           handlers.NewAdminOpsHandler(rt.Reader, audit, rt.Governor, logger),
		Protocols:          handlers.NewProtocolHandler(rt.Knowledge, logger),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
}
