package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"steam-price-api/internal/logger"
)

// proxyFromServer turns an httptest server into a pool proxy. The server sees
// the absolute-URI requests a real forward proxy would.
func proxyFromServer(t *testing.T, server *httptest.Server) *Proxy {
	t.Helper()
	return mustParse(t, server.Listener.Addr().String())
}

func TestProber_ProbeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	working := proxyFromServer(t, server)
	pool := testPool(t, working)
	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))

	latency, ok := prober.Probe(context.Background(), working)
	if !ok {
		t.Fatal("Probe() = false, want success")
	}
	if latency <= 0 {
		t.Errorf("Probe() latency = %v, want > 0", latency)
	}
}

func TestProber_ProbeFailure(t *testing.T) {
	dead := mustParse(t, "127.0.0.1:1")
	pool := testPool(t, dead)
	prober := NewProber(pool, "http://upstream.test/ip", 200*time.Millisecond, logger.New("error"))

	if _, ok := prober.Probe(context.Background(), dead); ok {
		t.Error("Probe() through unreachable proxy = true, want failure")
	}
}

func TestProber_ProbeNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	blocked := proxyFromServer(t, server)
	pool := testPool(t, blocked)
	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))

	if _, ok := prober.Probe(context.Background(), blocked); ok {
		t.Error("Probe() with 403 response = true, want failure")
	}
}

func TestProber_CheckAllRevivesUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	condemned := proxyFromServer(t, server)
	pool := testPool(t, condemned)
	for i := 0; i < 3; i++ {
		pool.ReportFailure(condemned)
	}
	if pool.IsHealthy(condemned) {
		t.Fatal("proxy should start unhealthy")
	}

	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))
	results := prober.CheckAll(context.Background(), 0, 0)

	if len(results) != 1 || !results[0].OK {
		t.Fatalf("CheckAll() results = %+v, want one success", results)
	}
	if !pool.IsHealthy(condemned) {
		t.Error("CheckAll() success did not revive the proxy")
	}
}

func TestProber_CheckAllMarksFailures(t *testing.T) {
	dead := mustParse(t, "127.0.0.1:1")
	pool := testPool(t, dead)
	prober := NewProber(pool, "http://upstream.test/ip", 100*time.Millisecond, logger.New("error"))

	for i := 0; i < 3; i++ {
		prober.CheckAll(context.Background(), 0, 0)
	}
	if pool.IsHealthy(dead) {
		t.Error("proxy still healthy after three failed health passes")
	}
}

func TestProber_FilterDeadDropsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	working := proxyFromServer(t, server)
	dead := mustParse(t, "127.0.0.1:1")
	pool := testPool(t, working, dead)

	prober := NewProber(pool, "http://upstream.test/ip", 100*time.Millisecond, logger.New("error"))
	removed := prober.FilterDead(context.Background(), time.Millisecond)

	if removed != 1 {
		t.Errorf("FilterDead() removed = %d, want 1", removed)
	}
	if pool.Len() != 1 {
		t.Errorf("Len() after FilterDead = %d, want 1", pool.Len())
	}
	if pool.Current() != working {
		t.Errorf("Current() after FilterDead = %v, want the working proxy", pool.Current())
	}
}

func TestProber_SequentialPassPacesProbes(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := maxInFlight.Load()
			if current <= observed || maxInFlight.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	proxies := []*Proxy{}
	for i := 0; i < 4; i++ {
		proxies = append(proxies, proxyFromServer(t, server))
	}
	pool := testPool(t, proxies...)

	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))
	prober.CheckAll(context.Background(), 1, time.Millisecond)

	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("sequential pass reached %d concurrent probes, want 1", got)
	}
}
