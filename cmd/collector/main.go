package main

import (
	"context"
	"flag"
	"log"
	"time"

	"steam-price-api/internal/catalog"
	"steam-price-api/internal/collector"
	"steam-price-api/internal/config"
	"steam-price-api/internal/logger"
	"steam-price-api/internal/platform"
	"steam-price-api/internal/proxy"
	"steam-price-api/internal/ratelimit"
	"steam-price-api/internal/steam"
)

func main() {
	var (
		limit          int
		noResume       bool
		ignoreStatTrak bool
		catalogPath    string
	)

	flag.IntVar(&limit, "limit", 0, "Collect at most this many skins (0 = all)")
	flag.BoolVar(&noResume, "no-resume", false, "Ignore the checkpoint and start from the beginning")
	flag.BoolVar(&ignoreStatTrak, "ignore-stattrak", false, "Skip StatTrak variants")
	flag.StringVar(&catalogPath, "catalog", "", "Catalog file path (overrides CATALOG_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}

	logger := logger.New(cfg.LogLevel)

	database, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatalf("Failed to load catalog: %v", err)
	}
	logger.Infof("Loaded catalog with %d skins", len(database.Skins))

	limiter := ratelimit.NewSlidingWindow(cfg.RateLimitRequests, cfg.RateLimitWindow)
	client := steam.NewClient(cfg, limiter, logger)
	defer client.Close()

	// Collection runs until done or interrupted; interrupts still checkpoint.
	ctx, stop := platform.NewShutdownContext(context.Background())
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, 2*time.Minute)
	if err := client.LoadProxies(startupCtx); err != nil {
		logger.Warnf("Proxy setup failed, continuing with direct requests: %v", err)
	}
	cancelStartup()

	var monitor *proxy.Monitor
	if cfg.UseProxies && cfg.HealthCheckEnabled {
		monitor = proxy.NewMonitor(client.Pool(), client.Prober(), cfg.HealthCheckInterval, logger)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	runner := collector.New(cfg, client, database, logger)
	options := collector.Options{
		Limit:          limit,
		Resume:         !noResume,
		IgnoreStatTrak: ignoreStatTrak,
	}

	if err := runner.Run(ctx, options); err != nil {
		if ctx.Err() != nil {
			logger.Warn("Collection interrupted, progress saved")
			return
		}
		logger.Fatalf("Collection failed: %v", err)
	}
}
