package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"steam-price-api/internal/api"
	"steam-price-api/internal/config"
	"steam-price-api/internal/logger"
	"steam-price-api/internal/platform"
	"steam-price-api/internal/proxy"
	"steam-price-api/internal/ratelimit"
	"steam-price-api/internal/steam"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize the Steam Market client and its upstream rate limiter
	limiter := ratelimit.NewSlidingWindow(cfg.RateLimitRequests, cfg.RateLimitWindow)
	client := steam.NewClient(cfg, limiter, logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := client.LoadProxies(startupCtx); err != nil {
		logger.Warnf("Proxy setup failed, continuing with direct requests: %v", err)
	}
	cancelStartup()

	// Keep proxy health fresh in the background
	var monitor *proxy.Monitor
	if cfg.UseProxies && cfg.HealthCheckEnabled {
		monitor = proxy.NewMonitor(client.Pool(), client.Prober(), cfg.HealthCheckInterval, logger)
		monitor.Start(context.Background())
	}

	// Initialize HTTP handlers
	handlers := api.NewHandlers(client, logger)

	// Setup Gin router
	router := handlers.SetupRoutes()

	// Setup HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting price service on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Create a shutdown context that works across platforms
	shutdownCtx, stop := platform.NewShutdownContext(context.Background())
	defer stop()
	<-shutdownCtx.Done()

	logger.Info("Shutting down server...")

	if monitor != nil {
		monitor.Stop()
	}
	client.Close()

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
