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

func TestMonitor_PeriodicPassesRunAndStop(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	target := proxyFromServer(t, server)
	pool := testPool(t, target)
	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))
	monitor := NewMonitor(pool, prober, 20*time.Millisecond, logger.New("error"))

	monitor.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for probes.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("monitor did not run two passes in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	monitor.Stop()
	settled := probes.Load()
	time.Sleep(60 * time.Millisecond)
	if probes.Load() != settled {
		t.Error("probes continued after Stop()")
	}
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	pool := testPool(t)
	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))
	monitor := NewMonitor(pool, prober, time.Minute, logger.New("error"))

	// Must not panic or hang
	monitor.Stop()
}

func TestMonitor_StartTwiceIsNoop(t *testing.T) {
	pool := testPool(t)
	prober := NewProber(pool, "http://upstream.test/ip", time.Second, logger.New("error"))
	monitor := NewMonitor(pool, prober, time.Minute, logger.New("error"))

	monitor.Start(context.Background())
	monitor.Start(context.Background())
	monitor.Stop()
}

func TestMonitor_PassCondemnsDeadProxies(t *testing.T) {
	dead := mustParse(t, "127.0.0.1:1")
	pool := testPool(t, dead)
	prober := NewProber(pool, "http://upstream.test/ip", 50*time.Millisecond, logger.New("error"))
	monitor := NewMonitor(pool, prober, time.Minute, logger.New("error"))

	for i := 0; i < 3; i++ {
		monitor.runPass(context.Background())
	}

	if pool.IsHealthy(dead) {
		t.Error("dead proxy survived three monitor passes")
	}
	if current := pool.Current(); current != nil {
		t.Errorf("Current() = %v, want nil after sole proxy condemned", current)
	}
}
