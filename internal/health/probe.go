package health

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aether-ai/mcpregd/internal/domain"
)

// probeResult is the outcome of one probe, retries included.
type probeResult struct {
	latency time.Duration
	err     error
}

// probe runs a single health probe for the descriptor, bounded by the
// descriptor's timeout. When the retry policy is enabled, failed attempts are
// retried with exponential backoff inside the same timeout budget.
func (m *Monitor) probe(ctx context.Context, d domain.ServerDescriptor) probeResult {
	timeout := d.HealthCheck.Timeout.Duration()
	if timeout <= 0 {
		timeout = domain.DefaultHealthCheckTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempt := func() error {
		return m.attempt(probeCtx, d)
	}

	var err error
	if d.RetryPolicy.Enabled && d.RetryPolicy.MaxRetries > 0 {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = d.RetryPolicy.InitialDelay.Duration()
		policy.Multiplier = d.RetryPolicy.BackoffMultiplier
		err = backoff.Retry(
			attempt,
			backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.RetryPolicy.MaxRetries)), probeCtx),
		)
	} else {
		err = attempt()
	}

	latency := time.Since(start)
	if probeCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("health check timed out after %s", timeout)
	}

	return probeResult{latency: latency, err: err}
}

// attempt performs one protocol-appropriate check.
//
// For stdio servers the check is "command is executable": the configured
// command is resolved via PATH lookup without spawning the process or speaking
// the protocol. Everything else gets an authenticated HTTP GET against the
// endpoint, with any 2xx/3xx response counting as healthy.
func (m *Monitor) attempt(ctx context.Context, d domain.ServerDescriptor) error {
	if d.Protocol == domain.ProtocolStdio {
		if d.Command == "" {
			return fmt.Errorf("no command configured for stdio server")
		}
		if _, err := m.lookPath(d.Command); err != nil {
			return fmt.Errorf("command %q not executable: %w", d.Command, err)
		}
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeEndpoint(d.Endpoint), nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	applyAuth(req, d.Authentication)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// probeEndpoint rewrites websocket schemes to their HTTP equivalents. Probes
// speak plain HTTP even when the server's own protocol is WebSocket, and Go's
// HTTP client rejects ws:// and wss:// outright.
func probeEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	}
	return endpoint
}

// applyAuth attaches the authentication headers the descriptor calls for.
func applyAuth(req *http.Request, auth domain.Authentication) {
	switch auth.Type {
	case domain.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case domain.AuthAPIKey:
		header := auth.Header
		if header == "" {
			header = domain.DefaultAPIKeyHeader
		}
		req.Header.Set(header, auth.Token)
	case domain.AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

// defaultLookPath resolves a command on the PATH.
func defaultLookPath(command string) (string, error) {
	return exec.LookPath(command)
}
