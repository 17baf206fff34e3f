package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"steam-price-api/internal/cache"
	"steam-price-api/internal/config"
	"steam-price-api/internal/models"
	"steam-price-api/internal/proxy"
)

// AppID is the catalog the market is queried for (CS2)
const AppID = "730"

// ErrClientClosed reports use of a client after Close. This is a contract
// violation, unlike ordinary network failures which surface as absent results.
var ErrClientClosed = errors.New("steam client is closed")

// Client fetches item prices from the Steam Community Market through a
// rotating proxy pool. One request flows cache -> concurrency slot -> rate
// limiter -> proxy selection -> HTTP call with rotation/retry on transient
// failures. Ordinary failures return an absent result plus the accumulated
// wait time, never an error.
type Client struct {
	cfg    *config.Config
	logger *logrus.Logger

	pool    *proxy.Pool
	prober  *proxy.Prober
	loader  *proxy.Loader
	cache   *cache.PriceCache
	limiter limiterContract
	gate    *semaphore.Weighted
	flight  singleflight.Group

	directClient *http.Client
	useProxies   atomic.Bool
	closed       atomic.Bool
}

// limiterContract is the admission-control surface the client needs
type limiterContract interface {
	Reserve(now time.Time) time.Duration
	Record(now time.Time)
}

type fetchResult struct {
	data   *models.PriceOverview
	waited time.Duration
}

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeRateLimited
	outcomeServerError
	outcomeRelayError
	outcomeUnexpected
)

// NewClient creates a price client from configuration. Proxies are not loaded
// until LoadProxies is called.
func NewClient(cfg *config.Config, limiter limiterContract, log *logrus.Logger) *Client {
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	pool := proxy.NewPool(cfg.MaxProxyFailures, log)

	client := &Client{
		cfg:     cfg,
		logger:  log,
		pool:    pool,
		prober:  proxy.NewProber(pool, cfg.ProxyTestURL, cfg.ProxyTestTimeout, log),
		loader:  proxy.NewLoader(log),
		cache:   cache.New(cfg.CacheTTL),
		limiter: limiter,
		gate:    semaphore.NewWeighted(int64(maxConcurrent)),
		directClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	return client
}

// Pool exposes the proxy pool for stats and health monitoring
func (client *Client) Pool() *proxy.Pool { return client.pool }

// Prober exposes the health prober so a monitor can share its bookkeeping
func (client *Client) Prober() *proxy.Prober { return client.prober }

// Cache exposes the result cache
func (client *Client) Cache() *cache.PriceCache { return client.cache }

// LoadProxies loads proxies from all configured sources and, when health
// checking is enabled, filters the fresh list one probe at a time. With no
// usable proxies the client falls back to direct requests.
func (client *Client) LoadProxies(ctx context.Context) error {
	if !client.cfg.UseProxies {
		client.logger.Info("Proxy usage disabled")
		return nil
	}

	proxies, err := client.loader.Load(ctx, proxy.Sources{
		Inline:    client.cfg.ProxyList,
		FilePath:  client.cfg.ProxyFile,
		RemoteURL: client.cfg.ProxySourceURL,
	})
	if err != nil {
		client.logger.Warn("No proxies available, proxy support disabled")
		return err
	}

	client.pool.Replace(proxies)

	if client.cfg.HealthCheckEnabled {
		client.prober.FilterDead(ctx, client.cfg.ProxyTestDelay)
	}

	client.useProxies.Store(client.pool.Len() > 0)
	if !client.useProxies.Load() {
		client.logger.Warn("No proxies available despite being enabled")
	}
	return nil
}

// Close marks the client unusable. Further calls fail hard.
func (client *Client) Close() {
	client.closed.Store(true)
}

// FetchPrice returns the price overview for one item, or nil when no result
// could be obtained, together with the total time spent waiting on rate
// limits and backoffs. Concurrent callers for the same key share one upstream
// fetch. The error return is reserved for contract violations and context
// cancellation.
func (client *Client) FetchPrice(ctx context.Context, marketHashName string, currency int) (*models.PriceOverview, time.Duration, error) {
	if client.closed.Load() {
		return nil, 0, ErrClientClosed
	}

	key := cache.Key(marketHashName, currency)
	if hit := client.cache.Get(key); hit != nil {
		client.logger.Debugf("Cache hit for %s", marketHashName)
		return hit, 0, nil
	}

	value, err, _ := client.flight.Do(key, func() (interface{}, error) {
		return client.fetchWithRetry(ctx, marketHashName, currency)
	})
	if err != nil {
		return nil, 0, err
	}

	result := value.(*fetchResult)
	return result.data, result.waited, nil
}

// fetchWithRetry runs the full dispatch path for one cache miss
func (client *Client) fetchWithRetry(ctx context.Context, marketHashName string, currency int) (*fetchResult, error) {
	if err := client.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer client.gate.Release(1)

	result := &fetchResult{}

	if wait := client.limiter.Reserve(time.Now()); wait > 0 {
		client.logger.Infof("Rate limit reached, sleeping for %.2f seconds", wait.Seconds())
		if err := sleepContext(ctx, wait); err != nil {
			return nil, err
		}
		client.limiter.Record(time.Now())
		result.waited += wait
	}

	attempts := client.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		currentProxy := client.currentProxy()

		start := time.Now()
		data, outcome, err := client.doAttempt(ctx, marketHashName, currency, currentProxy)
		if err != nil {
			return nil, err
		}
		latency := time.Since(start)

		switch outcome {
		case outcomeSuccess:
			if currentProxy != nil {
				client.pool.ReportSuccess(currentProxy, latency)
			}
			if data.Success {
				client.cache.Put(cache.Key(marketHashName, currency), data)
				client.logger.Debugf("Successfully fetched price for %s", marketHashName)
				result.data = data
			} else {
				client.logger.Warnf("No valid price data for %s", marketHashName)
			}
			return result, nil

		case outcomeServerError:
			// Upstream trouble, not the relay's fault
			client.logger.Warnf("Steam API server error for %s", marketHashName)
			return result, nil

		case outcomeRateLimited:
			client.logger.Warn("Rate limited by Steam API")
			if currentProxy != nil {
				client.pool.ReportFailure(currentProxy)
			}
			if attempt < attempts {
				client.pool.Rotate()
				waited, err := client.pause(ctx, client.retryDelay())
				if err != nil {
					return nil, err
				}
				result.waited += waited
				continue
			}
			backoff, err := client.pause(ctx, client.cfg.RateLimitBackoff)
			if err != nil {
				return nil, err
			}
			result.waited += backoff
			return result, nil

		case outcomeRelayError, outcomeUnexpected:
			if currentProxy != nil {
				client.pool.ReportFailure(currentProxy)
			}
			if attempt < attempts {
				client.pool.Rotate()
				waited, err := client.pause(ctx, client.retryDelay())
				if err != nil {
					return nil, err
				}
				result.waited += waited
				continue
			}
			return result, nil
		}
	}

	return result, nil
}

// doAttempt issues one HTTP call, through the given proxy or direct when nil,
// and classifies the outcome. The error return carries only context
// cancellation; everything else maps to an outcome.
func (client *Client) doAttempt(ctx context.Context, marketHashName string, currency int, via *proxy.Proxy) (*models.PriceOverview, attemptOutcome, error) {
	query := url.Values{}
	query.Set("appid", AppID)
	query.Set("currency", strconv.Itoa(currency))
	query.Set("market_hash_name", marketHashName)

	requestURL := client.cfg.SteamMarketAPIURL + "?" + query.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, outcomeUnexpected, nil
	}
	request.Header.Set("User-Agent", "CS2-TradeUp-Scanner/1.0")
	request.Header.Set("Accept", "application/json")

	response, err := client.httpClientFor(via).Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcomeRelayError, ctx.Err()
		}
		client.logger.Errorf("Steam API request failed: %v", err)
		return nil, outcomeRelayError, nil
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
		body, err := io.ReadAll(response.Body)
		if err != nil {
			return nil, outcomeRelayError, nil
		}
		var overview models.PriceOverview
		if err := json.Unmarshal(body, &overview); err != nil {
			client.logger.Errorf("Failed to parse Steam API response: %v", err)
			return nil, outcomeUnexpected, nil
		}
		return &overview, outcomeSuccess, nil

	case response.StatusCode == http.StatusTooManyRequests:
		return nil, outcomeRateLimited, nil

	case response.StatusCode == http.StatusForbidden,
		response.StatusCode == http.StatusProxyAuthRequired,
		response.StatusCode == http.StatusBadGateway,
		response.StatusCode == http.StatusServiceUnavailable:
		return nil, outcomeRelayError, nil

	case response.StatusCode >= 500:
		return nil, outcomeServerError, nil

	default:
		client.logger.Errorf("Steam API error: %d for %s", response.StatusCode, marketHashName)
		return nil, outcomeUnexpected, nil
	}
}

// FetchMany fetches prices for a list of items strictly one at a time with a
// pacing delay between requests. Items without a result are skipped, not
// fatal; only context cancellation aborts the batch.
func (client *Client) FetchMany(ctx context.Context, marketHashNames []string, currency int) (map[string]*models.PriceOverview, error) {
	results := make(map[string]*models.PriceOverview)

	for _, name := range marketHashNames {
		data, _, err := client.FetchPrice(ctx, name, currency)
		if err != nil {
			return results, err
		}
		if data != nil {
			results[name] = data
		} else {
			client.logger.Warnf("No price data found for: %s", name)
		}

		if err := sleepContext(ctx, client.cfg.BatchDelay); err != nil {
			return results, err
		}
	}

	return results, nil
}

// currentProxy returns the selected proxy, or nil for direct requests
func (client *Client) currentProxy() *proxy.Proxy {
	if !client.useProxies.Load() {
		return nil
	}
	return client.pool.Current()
}

// httpClientFor returns the shared direct client or a proxied one
func (client *Client) httpClientFor(via *proxy.Proxy) *http.Client {
	if via == nil {
		return client.directClient
	}
	return &http.Client{
		Timeout: client.cfg.RequestTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(via.URL()),
		},
	}
}

func (client *Client) retryDelay() time.Duration {
	if client.cfg.RetryDelay > 0 {
		return client.cfg.RetryDelay
	}
	return time.Second
}

// pause sleeps for the given duration and reports how long was slept
func (client *Client) pause(ctx context.Context, duration time.Duration) (time.Duration, error) {
	if duration <= 0 {
		return 0, nil
	}
	if err := sleepContext(ctx, duration); err != nil {
		return 0, err
	}
	return duration, nil
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
