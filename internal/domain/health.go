package domain

import "time"

const (
	// HealthUnknown means no probe has completed since the server was added or
	// probing was resumed.
	HealthUnknown HealthState = "unknown"

	// HealthHealthy means the most recent probe succeeded.
	HealthHealthy HealthState = "healthy"

	// HealthUnhealthy means the most recent probe failed.
	HealthUnhealthy HealthState = "unhealthy"

	// HealthDisabled means the server or its health checks are switched off and
	// no probes are scheduled.
	HealthDisabled HealthState = "disabled"
)

// HealthState is the probe-derived availability of a tool server.
type HealthState string

// ServerStatus is the mutable health state for one server. It transitions only
// on completed probe results or explicit enable/disable.
type ServerStatus struct {
	Status       HealthState    `json:"status"`
	LastCheck    *time.Time     `json:"lastCheck,omitempty"`
	LastError    string         `json:"lastError,omitempty"`
	ResponseTime *time.Duration `json:"responseTime,omitempty"`
}

// ServerMetrics accumulates probe counters for one server. Counters grow
// monotonically until the server is removed; a configuration update resets
// them (update is remove + re-add by design).
type ServerMetrics struct {
	TotalRequests       int64         `json:"totalRequests"`
	SuccessfulRequests  int64         `json:"successfulRequests"`
	FailedRequests      int64         `json:"failedRequests"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	UptimePercentage    float64       `json:"uptimePercentage"`
	LastRequestTime     *time.Time    `json:"lastRequestTime,omitempty"`
}

// RecordSuccess folds one successful probe into the counters. The running mean
// response time is computed over successful probes only.
func (m *ServerMetrics) RecordSuccess(at time.Time, latency time.Duration) {
	m.TotalRequests++
	prior := m.SuccessfulRequests
	m.SuccessfulRequests++
	m.AverageResponseTime = time.Duration(
		(int64(m.AverageResponseTime)*prior + int64(latency)) / m.SuccessfulRequests,
	)
	m.UptimePercentage = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
	m.LastRequestTime = &at
}

// RecordFailure folds one failed probe into the counters.
func (m *ServerMetrics) RecordFailure(at time.Time) {
	m.TotalRequests++
	m.FailedRequests++
	m.UptimePercentage = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
	m.LastRequestTime = &at
}

// ServerHealth joins the descriptor with its current status and metrics, as
// returned by registry health lookups.
type ServerHealth struct {
	Server  ServerDescriptor `json:"server"`
	Status  ServerStatus     `json:"status"`
	Metrics ServerMetrics    `json:"metrics"`
}
