package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stackmotive/stackmotive/internal/api/routes"
	"github.com/stackmotive/stackmotive/internal/infrastructure/config"
	"github.com/stackmotive/stackmotive/internal/infrastructure/di"
	"github.com/stackmotive/stackmotive/pkg/logger"
	"github.com/stackmotive/stackmotive/pkg/tracing"
	"github.com/stackmotive/stackmotive/pkg/version"
)

// @title StackMotive Allocation API
// @version 1.0
// @description Tax-aware portfolio allocation rings with drift analysis and rebalancing suggestions

// @contact.name API Support
// @contact.email support@stackmotive.io

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey UserID
// @in header
// @name X-User-ID
// @description Caller identity forwarded by the gateway.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	log.Infow("Starting StackMotive", "version", version.Version, "environment", cfg.Environment, "store", cfg.Allocation.Store)

	shutdownTracer, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: version.Service,
		Version:     version.Version,
		Environment: cfg.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	router := routes.SetupRoutes(container)

	if cfg.Allocation.DriftMonitorEnabled {
		if err := container.DriftMonitor.Start(); err != nil {
			log.Fatal("Failed to start drift monitor", "error", err)
		}
		log.Infow("Drift monitor started", "schedule", cfg.Allocation.DriftMonitorSchedule)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	if cfg.Allocation.DriftMonitorEnabled {
		log.Info("Stopping drift monitor...")
		if err := container.DriftMonitor.Stop(ctx); err != nil {
			log.Warnw("Error stopping drift monitor", "error", err)
		}
	}

	if err := shutdownTracer(ctx); err != nil {
		log.Warnw("Error flushing traces", "error", err)
	}

	container.Close()

	log.Info("Server exited")
	_ = log.Sync()
}
