package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor periodically re-probes every relay concurrently and reconciles pool
// health. It is startable and stoppable independently of request traffic;
// Stop waits for an in-flight pass to finish rather than abandoning it.
type Monitor struct {
	pool     *Pool
	prober   *Prober
	interval time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a health monitor
func NewMonitor(pool *Pool, prober *Prober, interval time.Duration, logger *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Monitor{
		pool:     pool,
		prober:   prober,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background loop. Calling Start on a running monitor is a
// no-op.
func (monitor *Monitor) Start(ctx context.Context) {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()

	if monitor.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	monitor.cancel = cancel

	monitor.wg.Add(1)
	go monitor.run(loopCtx)

	monitor.logger.Info("Started proxy health monitoring")
}

// Stop cancels the loop and waits for any in-flight probes to complete
func (monitor *Monitor) Stop() {
	monitor.mu.Lock()
	cancel := monitor.cancel
	monitor.cancel = nil
	monitor.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	monitor.wg.Wait()
	monitor.logger.Info("Stopped proxy health monitoring")
}

func (monitor *Monitor) run(ctx context.Context) {
	defer monitor.wg.Done()

	ticker := time.NewTicker(monitor.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitor.runPass(ctx)
		}
	}
}

// runPass executes one concurrent re-validation sweep. If the relay that was
// selected going in is condemned by the sweep, the selection is rotated so
// the next caller does not land on a known-bad relay.
func (monitor *Monitor) runPass(ctx context.Context) {
	selected := monitor.pool.Current()

	monitor.logger.Info("Starting proxy health check...")
	monitor.prober.CheckAll(ctx, 0, 0)

	if selected != nil && !monitor.pool.IsHealthy(selected) {
		monitor.pool.Rotate()
	}
	if monitor.pool.HealthyCount() == 0 && monitor.pool.Len() > 0 {
		monitor.logger.Warn("No healthy proxies available")
	}
}
