package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string

	// Steam Market API
	SteamMarketAPIURL string
	RequestTimeout    time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	RateLimitBackoff  time.Duration
	BatchDelay        time.Duration
	CacheTTL          time.Duration

	// Upstream rate limiting (0 requests = disabled)
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Concurrency
	MaxConcurrentRequests int

	// Proxy support
	UseProxies          bool
	ProxyList           []string
	ProxyFile           string
	ProxySourceURL      string
	HealthCheckEnabled  bool
	HealthCheckInterval time.Duration
	MaxProxyFailures    int
	ProxyTestURL        string
	ProxyTestTimeout    time.Duration
	ProxyTestDelay      time.Duration

	// Batch collection
	CatalogPath    string
	CheckpointPath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SteamMarketAPIURL: getEnv("STEAM_MARKET_API_URL", "https://steamcommunity.com/market/priceoverview/"),
		RequestTimeout:    time.Duration(mustAtoi(getEnv("REQUEST_TIMEOUT_SECONDS", "30"))) * time.Second,
		RetryAttempts:     mustAtoi(getEnv("RETRY_ATTEMPTS", "3")),
		RetryDelay:        time.Duration(mustAtoi(getEnv("RETRY_DELAY_SECONDS", "1"))) * time.Second,
		RateLimitBackoff:  time.Duration(mustAtoi(getEnv("RATE_LIMIT_BACKOFF_SECONDS", "60"))) * time.Second,
		BatchDelay:        time.Duration(mustAtoi(getEnv("BATCH_DELAY_MS", "200"))) * time.Millisecond,
		CacheTTL:          time.Duration(mustAtoi(getEnv("CACHE_TTL_SECONDS", "300"))) * time.Second,

		RateLimitRequests: mustAtoi(getEnv("STEAM_API_RATE_LIMIT", "20")),
		RateLimitWindow:   time.Duration(mustAtoi(getEnv("STEAM_API_RATE_WINDOW", "60"))) * time.Second,

		MaxConcurrentRequests: mustAtoi(getEnv("MAX_CONCURRENT_REQUESTS", "10")),

		UseProxies:          getEnv("USE_PROXIES", "false") == "true",
		ProxyList:           splitList(getEnv("PROXY_LIST", "")),
		ProxyFile:           getEnv("PROXY_FILE", "proxies.txt"),
		ProxySourceURL:      getEnv("PROXY_SOURCE_URL", ""),
		HealthCheckEnabled:  getEnv("PROXY_HEALTH_CHECK_ENABLED", "false") == "true",
		HealthCheckInterval: time.Duration(mustAtoi(getEnv("HEALTH_CHECK_INTERVAL_SECONDS", "300"))) * time.Second,
		MaxProxyFailures:    mustAtoi(getEnv("MAX_PROXY_FAILURES", "3")),
		ProxyTestURL:        getEnv("PROXY_TEST_URL", "http://httpbin.org/ip"),
		ProxyTestTimeout:    time.Duration(mustAtoi(getEnv("PROXY_TEST_TIMEOUT_SECONDS", "3"))) * time.Second,
		ProxyTestDelay:      time.Duration(mustAtoi(getEnv("PROXY_TEST_DELAY_MS", "100"))) * time.Millisecond,

		CatalogPath:    getEnv("CATALOG_PATH", "data/skins_database.json"),
		CheckpointPath: getEnv("CHECKPOINT_PATH", "price_collection_checkpoint.json"),
	}, nil
}

// splitList splits a comma-separated environment value into trimmed entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}

	entries := []string{}
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 60
	}
	return i
}
