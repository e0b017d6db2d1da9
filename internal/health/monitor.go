// Package health periodically probes the configured collaborators and keeps
// the latest result of each for the /healthz endpoint.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/providers"
)

// Status is the last probe outcome of one collaborator.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
	Latency   string    `json:"latency"`
}

// Monitor runs the probes on an interval until its context is canceled.
type Monitor struct {
	probes    map[string]providers.HealthFunc
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	startOnce sync.Once

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor constructs a monitor using the health configuration.
func NewMonitor(probes map[string]providers.HealthFunc, cfg config.HealthConfig, logger *slog.Logger) *Monitor {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		probes:   probes,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		statuses: make(map[string]Status),
	}
}

// Start begins the monitoring loop until ctx is canceled. Later calls are no-ops.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || len(m.probes) == 0 {
		return
	}
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow probes every collaborator concurrently and waits for all of them.
func (m *Monitor) CheckNow(ctx context.Context) {
	var wg sync.WaitGroup
	for name, probe := range m.probes {
		wg.Add(1)
		go func(name string, probe providers.HealthFunc) {
			defer wg.Done()
			timeoutCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			start := time.Now()
			err := probe(timeoutCtx)
			status := Status{
				Name:      name,
				Healthy:   err == nil,
				CheckedAt: start.UTC(),
				Latency:   time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				status.Error = err.Error()
				m.logger.Warn("collaborator health check failed", slog.String("collaborator", name), slog.String("error", err.Error()))
			}
			m.mu.Lock()
			m.statuses[name] = status
			m.mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
}

// Snapshot returns the latest statuses sorted by name. Collaborators that were
// never probed are omitted.
func (m *Monitor) Snapshot() []Status {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy is false only when a probed collaborator reported a failure.
func (m *Monitor) Healthy() bool {
	for _, s := range m.Snapshot() {
		if !s.Healthy {
			return false
		}
	}
	return true
}
