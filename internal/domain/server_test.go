package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMillis_JSON(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Millis(1500 * time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, "1500", string(out))

	var m Millis
	require.NoError(t, json.Unmarshal([]byte("2500"), &m))
	require.Equal(t, 2500*time.Millisecond, m.Duration())

	err = json.Unmarshal([]byte(`"2s"`), &m)
	require.ErrorContains(t, err, "integer number of milliseconds")
}

func TestMillis_YAML(t *testing.T) {
	t.Parallel()

	out, err := yaml.Marshal(Millis(3 * time.Second))
	require.NoError(t, err)
	require.Equal(t, "3000\n", string(out))

	var m Millis
	require.NoError(t, yaml.Unmarshal([]byte("750"), &m))
	require.Equal(t, 750*time.Millisecond, m.Duration())
}

func TestServerDescriptor_ApplyDefaults(t *testing.T) {
	t.Parallel()

	t.Run("fills zero-valued fields", func(t *testing.T) {
		t.Parallel()

		d := ServerDescriptor{ID: "srv", Endpoint: "stdio://local", Command: "srv"}
		d.ApplyDefaults()

		require.Equal(t, ProtocolStdio, d.Protocol)
		require.Equal(t, AuthNone, d.Authentication.Type)
		require.Equal(t, Millis(DefaultHealthCheckInterval), d.HealthCheck.Interval)
		require.Equal(t, Millis(DefaultHealthCheckTimeout), d.HealthCheck.Timeout)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		t.Parallel()

		d := ServerDescriptor{
			Protocol: ProtocolSSE,
			Authentication: Authentication{
				Type:  AuthBearer,
				Token: "tok",
			},
			HealthCheck: HealthCheckConfig{
				Interval: Millis(time.Minute),
				Timeout:  Millis(2 * time.Second),
			},
		}
		d.ApplyDefaults()

		require.Equal(t, ProtocolSSE, d.Protocol)
		require.Equal(t, AuthBearer, d.Authentication.Type)
		require.Equal(t, Millis(time.Minute), d.HealthCheck.Interval)
		require.Equal(t, Millis(2*time.Second), d.HealthCheck.Timeout)
	})

	t.Run("api key gets default header", func(t *testing.T) {
		t.Parallel()

		d := ServerDescriptor{Authentication: Authentication{Type: AuthAPIKey, Token: "key"}}
		d.ApplyDefaults()
		require.Equal(t, DefaultAPIKeyHeader, d.Authentication.Header)

		d = ServerDescriptor{Authentication: Authentication{Type: AuthAPIKey, Token: "key", Header: "X-Custom"}}
		d.ApplyDefaults()
		require.Equal(t, "X-Custom", d.Authentication.Header)
	})

	t.Run("retry defaults only when retries are enabled", func(t *testing.T) {
		t.Parallel()

		d := ServerDescriptor{}
		d.ApplyDefaults()
		require.Zero(t, d.RetryPolicy.MaxRetries)

		d = ServerDescriptor{RetryPolicy: RetryPolicy{Enabled: true}}
		d.ApplyDefaults()
		require.Equal(t, DefaultRetryCount, d.RetryPolicy.MaxRetries)
		require.Equal(t, float64(2), d.RetryPolicy.BackoffMultiplier)
		require.Equal(t, Millis(time.Second), d.RetryPolicy.InitialDelay)
	})
}

func TestServerDescriptor_HasTag(t *testing.T) {
	t.Parallel()

	d := ServerDescriptor{Tags: []string{"search", "code"}}
	require.True(t, d.HasTag("search"))
	require.False(t, d.HasTag("Search"), "matching is case sensitive")
	require.False(t, d.HasTag("missing"))

	empty := ServerDescriptor{}
	require.False(t, empty.HasTag("anything"))
}
