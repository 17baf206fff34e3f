package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/sirupsen/logrus"

	"steam-price-api/internal/config"
	"steam-price-api/internal/logger"
	"steam-price-api/internal/models"
)

// MockLogger creates a quiet logger for testing
func MockLogger() *logrus.Logger {
	return logger.New("error")
}

// MockConfig creates a configuration suitable for fast tests: rate limiting
// off, small retry and backoff delays, direct requests.
func MockConfig() *config.Config {
	return &config.Config{
		Port:     "8081",
		LogLevel: "error",

		SteamMarketAPIURL: "http://upstream.test/market/priceoverview/",
		RequestTimeout:    2 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Millisecond,
		RateLimitBackoff:  20 * time.Millisecond,
		BatchDelay:        time.Millisecond,
		CacheTTL:          5 * time.Minute,

		RateLimitRequests: 0,
		RateLimitWindow:   time.Minute,

		MaxConcurrentRequests: 4,

		UseProxies:          false,
		ProxyFile:           "",
		HealthCheckEnabled:  false,
		HealthCheckInterval: 50 * time.Millisecond,
		MaxProxyFailures:    3,
		ProxyTestURL:        "http://upstream.test/ip",
		ProxyTestTimeout:    time.Second,
		ProxyTestDelay:      time.Millisecond,

		CatalogPath:    "data/skins_database.json",
		CheckpointPath: "checkpoint.json",
	}
}

// MockMarketServer serves a successful priceoverview payload for every
// request and records how many requests it saw
type MockMarketServer struct {
	Server   *httptest.Server
	Requests int
}

// NewMockMarketServer creates a market API stub answering with the given price
func NewMockMarketServer(lowestPrice string) *MockMarketServer {
	mock := &MockMarketServer{}
	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.Requests++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.PriceOverview{
			Success:     true,
			LowestPrice: lowestPrice,
			MedianPrice: lowestPrice,
			Volume:      "128",
		})
	}))
	return mock
}

// Close shuts the stub down
func (mock *MockMarketServer) Close() {
	mock.Server.Close()
}
