package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/aether-ai/mcpregd/internal/domain"
	"github.com/aether-ai/mcpregd/internal/events"
)

// longInterval keeps the ticker out of the way so tests drive probes through
// Check.
const longInterval = domain.Millis(time.Hour)

func newTestMonitor(t *testing.T, opts ...MonitorOption) (*Monitor, *events.Bus) {
	t.Helper()

	logger := hclog.NewNullLogger()
	bus := events.NewBus(logger)
	m := NewMonitor(logger, bus, opts...)

	t.Cleanup(func() {
		m.Stop()
		bus.Close()
	})
	return m, bus
}

func sseDescriptor(endpoint string) domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:       "remote",
		Name:     "Remote",
		Endpoint: endpoint,
		Protocol: domain.ProtocolSSE,
		Enabled:  true,
		HealthCheck: domain.HealthCheckConfig{
			Enabled:  true,
			Interval: longInterval,
			Timeout:  domain.Millis(2 * time.Second),
		},
	}
}

func stdioDescriptor(command string) domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:       "local",
		Name:     "Local",
		Endpoint: "stdio://local",
		Protocol: domain.ProtocolStdio,
		Command:  command,
		Enabled:  true,
		HealthCheck: domain.HealthCheckConfig{
			Enabled:  true,
			Interval: longInterval,
			Timeout:  domain.Millis(2 * time.Second),
		},
	}
}

func waitForStatus(t *testing.T, m *Monitor, id string, want domain.HealthState) {
	t.Helper()

	require.Eventually(t, func() bool {
		status, ok := m.Status(id)
		return ok && status.Status == want
	}, 3*time.Second, 10*time.Millisecond, "server %q never reached %q", id, want)
}

func TestMonitor_HealthyEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMonitor(t)
	m.AddServer(sseDescriptor(srv.URL))

	waitForStatus(t, m, "remote", domain.HealthHealthy)

	status, ok := m.Status("remote")
	require.True(t, ok)
	require.NotNil(t, status.LastCheck)
	require.NotNil(t, status.ResponseTime)
	require.Empty(t, status.LastError)

	metrics, ok := m.Metrics("remote")
	require.True(t, ok)
	require.EqualValues(t, 1, metrics.TotalRequests)
	require.EqualValues(t, 1, metrics.SuccessfulRequests)
	require.InDelta(t, 100.0, metrics.UptimePercentage, 0.01)
}

func TestMonitor_WebSocketEndpointsProbeOverHTTP(t *testing.T) {
	t.Parallel()

	t.Run("ws endpoint", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		d := sseDescriptor("ws" + strings.TrimPrefix(srv.URL, "http"))
		d.Protocol = domain.ProtocolWebSocket

		m, _ := newTestMonitor(t)
		m.AddServer(d)

		waitForStatus(t, m, "remote", domain.HealthHealthy)

		status, _ := m.Status("remote")
		require.Empty(t, status.LastError)
	})

	t.Run("wss endpoint", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		d := sseDescriptor("wss" + strings.TrimPrefix(srv.URL, "https"))
		d.Protocol = domain.ProtocolWebSocket

		m, _ := newTestMonitor(t, WithHTTPClient(srv.Client()))
		m.AddServer(d)

		waitForStatus(t, m, "remote", domain.HealthHealthy)
	})
}

func TestMonitor_FailingEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMonitor(t)
	m.AddServer(sseDescriptor(srv.URL))

	waitForStatus(t, m, "remote", domain.HealthUnhealthy)

	status, _ := m.Status("remote")
	require.Contains(t, status.LastError, "500")

	metrics, _ := m.Metrics("remote")
	require.EqualValues(t, 1, metrics.FailedRequests)
	require.Zero(t, metrics.SuccessfulRequests)
	require.InDelta(t, 0.0, metrics.UptimePercentage, 0.01)
}

func TestMonitor_UptimeReflectsMixedOutcomes(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMonitor(t)
	m.AddServer(sseDescriptor(srv.URL))
	waitForStatus(t, m, "remote", domain.HealthHealthy)

	// One more success, then two failures: 2/4 probes healthy.
	require.True(t, m.Check(context.Background(), "remote"))
	fail.Store(true)
	require.False(t, m.Check(context.Background(), "remote"))
	require.False(t, m.Check(context.Background(), "remote"))

	metrics, _ := m.Metrics("remote")
	require.EqualValues(t, 4, metrics.TotalRequests)
	require.EqualValues(t, 2, metrics.SuccessfulRequests)
	require.EqualValues(t, 2, metrics.FailedRequests)
	require.InDelta(t, 50.0, metrics.UptimePercentage, 0.01)

	status, _ := m.Status("remote")
	require.Equal(t, domain.HealthUnhealthy, status.Status)
}

func TestMonitor_RecoveryClearsLastError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMonitor(t)
	m.AddServer(sseDescriptor(srv.URL))
	waitForStatus(t, m, "remote", domain.HealthUnhealthy)

	fail.Store(false)
	require.True(t, m.Check(context.Background(), "remote"))

	status, _ := m.Status("remote")
	require.Equal(t, domain.HealthHealthy, status.Status)
	require.Empty(t, status.LastError)
}

func TestMonitor_DisabledServerIsNotProbed(t *testing.T) {
	t.Parallel()

	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := sseDescriptor(srv.URL)
	d.Enabled = false

	m, _ := newTestMonitor(t)
	m.AddServer(d)

	status, ok := m.Status("remote")
	require.True(t, ok)
	require.Equal(t, domain.HealthDisabled, status.Status)

	// An explicit check probes but leaves the disabled status untouched.
	require.True(t, m.Check(context.Background(), "remote"))
	require.EqualValues(t, 1, probes.Load())

	status, _ = m.Status("remote")
	require.Equal(t, domain.HealthDisabled, status.Status)

	metrics, _ := m.Metrics("remote")
	require.Zero(t, metrics.TotalRequests, "checks against disabled servers are not recorded")
}

func TestMonitor_HealthChecksDisabledByConfig(t *testing.T) {
	t.Parallel()

	d := stdioDescriptor("some-tool")
	d.HealthCheck.Enabled = false

	m, _ := newTestMonitor(t, WithLookPath(func(string) (string, error) {
		return "/usr/bin/some-tool", nil
	}))
	m.AddServer(d)

	status, ok := m.Status("local")
	require.True(t, ok)
	require.Equal(t, domain.HealthDisabled, status.Status)
}

func TestMonitor_StdioProbeUsesCommandLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lookPath func(string) (string, error)
		want     domain.HealthState
	}{
		{
			name:     "resolvable command is healthy",
			lookPath: func(string) (string, error) { return "/usr/bin/some-tool", nil },
			want:     domain.HealthHealthy,
		},
		{
			name:     "unresolvable command is unhealthy",
			lookPath: func(string) (string, error) { return "", fmt.Errorf("not found") },
			want:     domain.HealthUnhealthy,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, _ := newTestMonitor(t, WithLookPath(tc.lookPath))
			m.AddServer(stdioDescriptor("some-tool"))

			waitForStatus(t, m, "local", tc.want)
		})
	}
}

func TestMonitor_UpdateServerResetsMetrics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMonitor(t)
	d := sseDescriptor(srv.URL)
	m.AddServer(d)
	waitForStatus(t, m, "remote", domain.HealthHealthy)

	require.True(t, m.Check(context.Background(), "remote"))
	metrics, _ := m.Metrics("remote")
	require.EqualValues(t, 2, metrics.TotalRequests)

	m.UpdateServer(d)

	// Counters restart; the new supervision begins with its own probe.
	require.Eventually(t, func() bool {
		metrics, ok := m.Metrics("remote")
		return ok && metrics.TotalRequests == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMonitor_ToggleEnabledKeepsMetrics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m, _ := newTestMonitor(t)
	m.AddServer(sseDescriptor(srv.URL))
	waitForStatus(t, m, "remote", domain.HealthHealthy)

	require.True(t, m.Check(context.Background(), "remote"))
	metrics, _ := m.Metrics("remote")
	require.EqualValues(t, 2, metrics.TotalRequests)

	m.SetServerEnabled("remote", false)

	status, _ := m.Status("remote")
	require.Equal(t, domain.HealthDisabled, status.Status)
	metrics, _ = m.Metrics("remote")
	require.EqualValues(t, 2, metrics.TotalRequests, "disabling keeps accumulated counters")

	m.SetServerEnabled("remote", true)
	waitForStatus(t, m, "remote", domain.HealthHealthy)

	// Probing resumed on top of the retained counters.
	require.Eventually(t, func() bool {
		metrics, ok := m.Metrics("remote")
		return ok && metrics.TotalRequests >= 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMonitor_RemoveServerDiscardsState(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor(t, WithLookPath(func(string) (string, error) {
		return "/usr/bin/some-tool", nil
	}))
	m.AddServer(stdioDescriptor("some-tool"))
	waitForStatus(t, m, "local", domain.HealthHealthy)

	m.RemoveServer("local")

	_, ok := m.Status("local")
	require.False(t, ok)
	_, ok = m.Metrics("local")
	require.False(t, ok)
	require.False(t, m.Check(context.Background(), "local"), "unknown ids report false")
}

func TestMonitor_PublishesStatusChangeAndHealthChecked(t *testing.T) {
	t.Parallel()

	logger := hclog.NewNullLogger()
	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)

	statusSub := bus.Subscribe(events.TypeStatusChanged)
	checkedSub := bus.Subscribe(events.TypeHealthChecked)

	m := NewMonitor(logger, bus, WithLookPath(func(string) (string, error) {
		return "/usr/bin/some-tool", nil
	}))
	t.Cleanup(m.Stop)

	m.AddServer(stdioDescriptor("some-tool"))
	waitForStatus(t, m, "local", domain.HealthHealthy)

	select {
	case evt := <-statusSub.Events():
		change, ok := evt.Payload.(events.StatusChange)
		require.True(t, ok)
		require.Equal(t, string(domain.HealthUnknown), change.OldStatus)
		require.Equal(t, string(domain.HealthHealthy), change.NewStatus)
	case <-time.After(time.Second):
		t.Fatal("no status.changed event")
	}

	select {
	case evt := <-checkedSub.Events():
		checked, ok := evt.Payload.(events.HealthChecked)
		require.True(t, ok)
		require.True(t, checked.Healthy)
	case <-time.After(time.Second):
		t.Fatal("no health.checked event")
	}

	// A repeat healthy probe emits health.checked but no further transition.
	require.True(t, m.Check(context.Background(), "local"))
	select {
	case evt := <-statusSub.Events():
		t.Fatalf("unexpected status change: %v", evt.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	d := sseDescriptor(srv.URL)
	d.HealthCheck.Timeout = domain.Millis(100 * time.Millisecond)

	m, _ := newTestMonitor(t)
	m.AddServer(d)

	waitForStatus(t, m, "remote", domain.HealthUnhealthy)

	status, _ := m.Status("remote")
	require.Contains(t, status.LastError, "timed out")
}

func TestMonitor_ProbeSendsAuthHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := sseDescriptor(srv.URL)
	d.Authentication = domain.Authentication{Type: domain.AuthBearer, Token: "tok123"}

	m, _ := newTestMonitor(t)
	m.AddServer(d)
	waitForStatus(t, m, "remote", domain.HealthHealthy)

	require.Equal(t, "Bearer tok123", gotAuth.Load())
}
