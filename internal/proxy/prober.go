package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Prober issues lightweight test requests through relays against a fixed
// cheap endpoint. The same CheckAll pass serves both startup filtering
// (concurrency 1 with pacing) and the periodic monitor (fully concurrent);
// the call sites differ only in configuration.
type Prober struct {
	pool    *Pool
	testURL string
	timeout time.Duration
	logger  *logrus.Logger
}

// Result is the outcome of probing one relay
type Result struct {
	Proxy   *Proxy
	OK      bool
	Latency time.Duration
}

// NewProber creates a prober for the given pool
func NewProber(pool *Pool, testURL string, timeout time.Duration, logger *logrus.Logger) *Prober {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{
		pool:    pool,
		testURL: testURL,
		timeout: timeout,
		logger:  logger,
	}
}

// Probe issues one GET through the relay. Success means the test endpoint
// answered with a success status inside the probe timeout; any transport or
// protocol error counts as failure.
func (prober *Prober) Probe(ctx context.Context, proxy *Proxy) (time.Duration, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, prober.timeout)
	defer cancel()

	httpClient := &http.Client{
		Timeout: prober.timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxy.URL()),
		},
	}

	request, err := http.NewRequestWithContext(probeCtx, http.MethodGet, prober.testURL, nil)
	if err != nil {
		return 0, false
	}

	start := time.Now()
	response, err := httpClient.Do(request)
	if err != nil {
		prober.logger.Debugf("Proxy test failed for %s: %v", proxy.Addr(), err)
		return 0, false
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return 0, false
	}
	return time.Since(start), true
}

// CheckAll probes every relay in the pool with the given concurrency degree
// (zero or less means one goroutine per relay) and an optional pacing delay
// between probe starts. Outcomes flow through the pool's shared bookkeeping:
// failures through ReportFailure, successes through ReportProbeSuccess, which
// is the only path that revives an unhealthy relay.
func (prober *Prober) CheckAll(ctx context.Context, concurrency int, pacing time.Duration) []Result {
	proxies := prober.pool.Snapshot()
	if len(proxies) == 0 {
		return nil
	}

	if concurrency <= 0 {
		concurrency = len(proxies)
	}

	results := make([]Result, len(proxies))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, candidate := range proxies {
		if pacing > 0 && i > 0 {
			select {
			case <-groupCtx.Done():
			case <-time.After(pacing):
			}
		}
		if groupCtx.Err() != nil {
			break
		}

		index, proxy := i, candidate
		group.Go(func() error {
			latency, ok := prober.Probe(groupCtx, proxy)
			if ok {
				prober.pool.ReportProbeSuccess(proxy, latency)
			} else {
				prober.pool.ReportFailure(proxy)
			}
			results[index] = Result{Proxy: proxy, OK: ok, Latency: latency}
			return nil
		})
	}

	_ = group.Wait()

	healthy := prober.pool.HealthyCount()
	prober.logger.Infof("Proxy health check completed. %d/%d proxies healthy", healthy, len(proxies))
	return results
}

// FilterDead probes every relay one at a time with a pacing delay and swaps
// in a list containing only the relays that passed. Used once on freshly
// loaded lists to avoid hammering the test endpoint.
func (prober *Prober) FilterDead(ctx context.Context, pacing time.Duration) int {
	total := prober.pool.Len()
	if total == 0 {
		return 0
	}

	prober.logger.Infof("Testing %d proxies one by one...", total)
	results := prober.CheckAll(ctx, 1, pacing)

	working := []*Proxy{}
	for _, result := range results {
		if result.OK {
			working = append(working, result.Proxy)
		}
	}

	prober.pool.Replace(working)

	removed := total - len(working)
	if removed > 0 {
		prober.logger.Infof("Filtered out %d dead proxies, %d working proxies remain", removed, len(working))
	} else {
		prober.logger.Infof("All %d proxies are working", len(working))
	}
	return removed
}
