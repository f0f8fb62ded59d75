// Package health supervises recurring health probes for registered tool
// servers. Every server is probed on its own timer, independently of all
// others; probe outcomes are folded into per-server status and cumulative
// metrics and published on the event bus. A failed probe is a normal outcome,
// recorded as data and never surfaced as an error to callers.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/aether-ai/mcpregd/internal/domain"
	"github.com/aether-ai/mcpregd/internal/events"
)

// Monitor owns per-server probe timers plus the status and metrics maps.
// NewMonitor should be used to create instances of Monitor.
type Monitor struct {
	logger   hclog.Logger
	bus      *events.Bus
	client   *http.Client
	lookPath func(string) (string, error)

	mu      sync.RWMutex
	servers map[string]*supervision
}

// supervision is the monitor's per-server state. status and metrics are only
// mutated under the monitor's lock; cancel stops the probe loop.
type supervision struct {
	descriptor domain.ServerDescriptor
	status     domain.ServerStatus
	metrics    domain.ServerMetrics
	cancel     context.CancelFunc
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithHTTPClient overrides the HTTP client used for probes.
func WithHTTPClient(client *http.Client) MonitorOption {
	return func(m *Monitor) {
		m.client = client
	}
}

// WithLookPath overrides command resolution for stdio probes. Used in tests.
func WithLookPath(lookPath func(string) (string, error)) MonitorOption {
	return func(m *Monitor) {
		m.lookPath = lookPath
	}
}

// NewMonitor creates a Monitor publishing to the given bus.
func NewMonitor(logger hclog.Logger, bus *events.Bus, opt ...MonitorOption) *Monitor {
	m := &Monitor{
		logger:   logger.Named("monitor"),
		bus:      bus,
		client:   &http.Client{},
		lookPath: defaultLookPath,
		servers:  make(map[string]*supervision),
	}
	for _, o := range opt {
		if o != nil {
			o(m)
		}
	}
	return m
}

// AddServer starts supervising a descriptor. If the server or its health
// checks are disabled, the status is forced to disabled and no probes are
// scheduled; otherwise the status starts at unknown, one probe fires
// immediately, and further probes repeat at the descriptor's interval.
func (m *Monitor) AddServer(d domain.ServerDescriptor) {
	m.mu.Lock()

	if prior, exists := m.servers[d.ID]; exists {
		prior.stop()
	}

	sup := &supervision{descriptor: d}
	m.servers[d.ID] = sup

	if !d.Enabled || !d.HealthCheck.Enabled {
		sup.status = domain.ServerStatus{Status: domain.HealthDisabled}
		m.mu.Unlock()
		m.logger.Debug("Server added without probing", "server", d.ID, "enabled", d.Enabled)
		return
	}

	sup.status = domain.ServerStatus{Status: domain.HealthUnknown}
	ctx, cancel := context.WithCancel(context.Background())
	sup.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("Starting health supervision", "server", d.ID, "interval", d.HealthCheck.Interval.Duration())
	go m.supervise(ctx, d)
}

// UpdateServer restarts supervision with the new descriptor. Implemented as
// remove followed by add: a configuration change invalidates historical
// metrics rather than attempting to reconcile them.
func (m *Monitor) UpdateServer(d domain.ServerDescriptor) {
	m.RemoveServer(d.ID)
	m.AddServer(d)
}

// SetServerEnabled toggles probing without touching accumulated metrics.
// Disabling stops the probe loop and forces the status to disabled; enabling
// resumes probing from unknown, provided the descriptor's health checks are
// enabled. Metrics reset only on removal and re-registration.
func (m *Monitor) SetServerEnabled(id string, enabled bool) {
	m.mu.Lock()

	sup, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	sup.descriptor.Enabled = enabled

	if !enabled {
		sup.stop()
		sup.status = domain.ServerStatus{Status: domain.HealthDisabled}
		m.mu.Unlock()
		m.logger.Info("Paused health supervision", "server", id)
		return
	}

	if sup.cancel != nil || !sup.descriptor.HealthCheck.Enabled {
		m.mu.Unlock()
		return
	}

	sup.status = domain.ServerStatus{Status: domain.HealthUnknown}
	d := sup.descriptor
	ctx, cancel := context.WithCancel(context.Background())
	sup.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("Resuming health supervision", "server", id, "interval", d.HealthCheck.Interval.Duration())
	go m.supervise(ctx, d)
}

// RemoveServer cancels the server's probe timer and discards its status and
// metrics. A probe already in flight has its late result dropped.
func (m *Monitor) RemoveServer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sup, ok := m.servers[id]
	if !ok {
		return
	}
	sup.stop()
	delete(m.servers, id)
	m.logger.Info("Stopped health supervision", "server", id)
}

// Status returns a copy of the server's current status.
func (m *Monitor) Status(id string) (domain.ServerStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sup, ok := m.servers[id]
	if !ok {
		return domain.ServerStatus{}, false
	}
	return sup.status, true
}

// Metrics returns a copy of the server's accumulated probe counters.
func (m *Monitor) Metrics(id string) (domain.ServerMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sup, ok := m.servers[id]
	if !ok {
		return domain.ServerMetrics{}, false
	}
	return sup.metrics, true
}

// Check runs one immediate out-of-band probe and reports whether it succeeded.
// Unknown ids report false. The result is recorded like any scheduled probe
// unless the server is disabled, in which case the disabled status is left
// untouched.
func (m *Monitor) Check(ctx context.Context, id string) bool {
	m.mu.RLock()
	sup, ok := m.servers[id]
	if !ok {
		m.mu.RUnlock()
		return false
	}
	d := sup.descriptor
	disabled := sup.status.Status == domain.HealthDisabled
	m.mu.RUnlock()

	result := m.probe(ctx, d)
	if !disabled {
		m.record(id, result)
	}
	return result.err == nil
}

// Stop cancels supervision for every server. Status and metrics remain
// readable until the servers are removed.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sup := range m.servers {
		sup.stop()
	}
}

// supervise runs the per-server probe loop: one immediate probe, then one per
// interval tick. A new probe is scheduled relative to the prior tick, never
// stacked behind a slow probe.
func (m *Monitor) supervise(ctx context.Context, d domain.ServerDescriptor) {
	interval := d.HealthCheck.Interval.Duration()
	if interval <= 0 {
		interval = domain.DefaultHealthCheckInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.record(d.ID, m.probe(ctx, d))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.record(d.ID, m.probe(ctx, d))
		}
	}
}

// record folds a probe outcome into the server's metrics and status, emitting
// status.changed on transition and health.checked always. Results arriving
// after the server was removed or disabled are dropped.
func (m *Monitor) record(id string, result probeResult) {
	now := time.Now().UTC()

	m.mu.Lock()
	sup, ok := m.servers[id]
	if !ok || sup.status.Status == domain.HealthDisabled {
		m.mu.Unlock()
		return
	}

	oldStatus := sup.status.Status
	latency := result.latency
	sup.status.LastCheck = &now
	sup.status.ResponseTime = &latency

	if result.err == nil {
		sup.metrics.RecordSuccess(now, result.latency)
		sup.status.Status = domain.HealthHealthy
		sup.status.LastError = ""
	} else {
		sup.metrics.RecordFailure(now)
		sup.status.Status = domain.HealthUnhealthy
		sup.status.LastError = result.err.Error()
	}
	newStatus := sup.status.Status
	m.mu.Unlock()

	if result.err != nil {
		m.logger.Debug("Health check failed", "server", id, "error", result.err)
	}

	if newStatus != oldStatus {
		m.bus.Publish(events.TypeStatusChanged, id, events.StatusChange{
			NewStatus: string(newStatus),
			OldStatus: string(oldStatus),
		})
	}

	errText := ""
	if result.err != nil {
		errText = result.err.Error()
	}
	m.bus.Publish(events.TypeHealthChecked, id, events.HealthChecked{
		Healthy: result.err == nil,
		Latency: result.latency,
		Error:   errText,
	})
}

// stop cancels the supervision loop if one is running. Callers hold the
// monitor lock.
func (s *supervision) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
