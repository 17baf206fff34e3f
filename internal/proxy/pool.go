package proxy

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pool owns the known relays, the rotating selection over their healthy
// subset, and all health bookkeeping. Counter updates from live traffic and
// from health probes both funnel through ReportFailure, ReportSuccess and
// ReportProbeSuccess; structural changes go through Replace so that they never
// interleave with selection.
type Pool struct {
	maxFailures int
	logger      *logrus.Logger

	mu           sync.Mutex
	proxies      []*Proxy
	currentIndex int
}

// NewPool creates an empty pool. maxFailures is the failure streak at which a
// relay is taken out of selection (default 3).
func NewPool(maxFailures int, logger *logrus.Logger) *Pool {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &Pool{
		maxFailures: maxFailures,
		logger:      logger,
	}
}

// Current returns the currently selected healthy relay, or nil when the pool
// has no eligible relay and requests should go direct.
func (pool *Pool) Current() *Proxy {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.currentLocked()
}

func (pool *Pool) currentLocked() *Proxy {
	healthy := pool.healthyLocked()
	if len(healthy) == 0 {
		return nil
	}
	if pool.currentIndex >= len(healthy) {
		pool.currentIndex = 0
	}
	return healthy[pool.currentIndex]
}

// Rotate advances the selection to the next healthy relay. With one or zero
// healthy relays it is a no-op.
func (pool *Pool) Rotate() {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	pool.rotateLocked()
}

func (pool *Pool) rotateLocked() {
	healthy := pool.healthyLocked()
	if len(healthy) <= 1 {
		return
	}

	pool.currentIndex = (pool.currentIndex + 1) % len(healthy)
	if current := pool.currentLocked(); current != nil {
		pool.logger.Infof("Rotated to proxy: %s", current.Addr())
	}
}

// ReportFailure records a failed request or probe through the relay. Reaching
// the failure threshold takes it out of selection and rotates away from it.
func (pool *Pool) ReportFailure(proxy *Proxy) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	proxy.failureStreak++
	proxy.lastCheckedAt = time.Now()

	if proxy.state == Unhealthy {
		return
	}

	if proxy.failureStreak >= pool.maxFailures {
		proxy.state = Unhealthy
		pool.logger.Warnf("Proxy %s marked as unhealthy after %d failures", proxy.Addr(), proxy.failureStreak)
		pool.rotateLocked()
		return
	}

	proxy.state = Degraded
}

// ReportSuccess records a successful request through the relay. It walks the
// failure streak back by one but never resurrects an Unhealthy relay; only a
// probe does that.
func (pool *Pool) ReportSuccess(proxy *Proxy, latency time.Duration) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	proxy.successCount++
	proxy.lastLatency = latency
	proxy.lastCheckedAt = time.Now()

	if proxy.failureStreak > 0 {
		proxy.failureStreak--
	}
	if proxy.state == Degraded && proxy.failureStreak == 0 {
		proxy.state = Healthy
	}
}

// ReportProbeSuccess records a successful health probe. This is the only
// transition out of Unhealthy.
func (pool *Pool) ReportProbeSuccess(proxy *Proxy, latency time.Duration) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	proxy.successCount++
	proxy.lastLatency = latency
	proxy.lastCheckedAt = time.Now()
	proxy.failureStreak = 0
	proxy.state = Healthy
}

// IsHealthy reports whether the relay is currently eligible for selection
func (pool *Pool) IsHealthy(proxy *Proxy) bool {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return proxy.state != Unhealthy
}

// Replace swaps the entire relay list in one step and resets the selection
func (pool *Pool) Replace(proxies []*Proxy) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.proxies = proxies
	pool.currentIndex = 0
}

// Add appends a relay to the pool
func (pool *Pool) Add(proxy *Proxy) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.proxies = append(pool.proxies, proxy)
	pool.logger.Infof("Added proxy: %s", proxy.Addr())
}

// Remove drops the relay with the given host and port
func (pool *Pool) Remove(host string, port int) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	kept := pool.proxies[:0]
	for _, proxy := range pool.proxies {
		if proxy.Host == host && proxy.Port == port {
			continue
		}
		kept = append(kept, proxy)
	}
	pool.proxies = kept
	pool.currentIndex = 0
	pool.logger.Infof("Removed proxy: %s:%d", host, port)
}

// Snapshot returns a copy of the relay list for iteration outside the lock
func (pool *Pool) Snapshot() []*Proxy {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	snapshot := make([]*Proxy, len(pool.proxies))
	copy(snapshot, pool.proxies)
	return snapshot
}

// Len returns the number of known relays
func (pool *Pool) Len() int {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return len(pool.proxies)
}

// HealthyCount returns the number of relays eligible for selection
func (pool *Pool) HealthyCount() int {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return len(pool.healthyLocked())
}

func (pool *Pool) healthyLocked() []*Proxy {
	healthy := make([]*Proxy, 0, len(pool.proxies))
	for _, proxy := range pool.proxies {
		if proxy.state != Unhealthy {
			healthy = append(healthy, proxy)
		}
	}
	return healthy
}

// ProxyStats is a point-in-time view of one relay's counters
type ProxyStats struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	Protocol      string        `json:"protocol"`
	State         string        `json:"state"`
	SuccessCount  int           `json:"success_count"`
	FailureStreak int           `json:"failure_streak"`
	LastLatency   time.Duration `json:"last_latency_ns"`
	LastCheckedAt time.Time     `json:"last_checked_at"`
}

// Stats is a point-in-time view of the pool
type Stats struct {
	TotalProxies   int          `json:"total_proxies"`
	HealthyProxies int          `json:"healthy_proxies"`
	CurrentProxy   string       `json:"current_proxy,omitempty"`
	Proxies        []ProxyStats `json:"proxies"`
}

// Stats returns pool statistics
func (pool *Pool) Stats() Stats {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	stats := Stats{
		TotalProxies:   len(pool.proxies),
		HealthyProxies: len(pool.healthyLocked()),
	}
	if current := pool.currentLocked(); current != nil {
		stats.CurrentProxy = current.Addr()
	}

	for _, proxy := range pool.proxies {
		stats.Proxies = append(stats.Proxies, ProxyStats{
			Host:          proxy.Host,
			Port:          proxy.Port,
			Protocol:      proxy.Protocol,
			State:         proxy.state.String(),
			SuccessCount:  proxy.successCount,
			FailureStreak: proxy.failureStreak,
			LastLatency:   proxy.lastLatency,
			LastCheckedAt: proxy.lastCheckedAt,
		})
	}

	return stats
}
