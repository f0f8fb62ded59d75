package daemon

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAPIOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := NewAPIOptions()
	require.NoError(t, err)

	require.False(t, opts.CORS.Enabled)
	require.Nil(t, opts.CORS.AllowOrigins)
	require.Equal(t, DefaultCORSAllowMethods(), opts.CORS.AllowMethods)
	require.Equal(t, DefaultCORSAllowHeaders(), opts.CORS.AllowedHeaders)
	require.False(t, opts.CORS.AllowCredentials)
	require.Equal(t, DefaultCORSMaxAge(), opts.CORS.MaxAge)
	require.Equal(t, DefaultAPIShutdownTimeout(), opts.ShutdownTimeout)
}

func TestNewAPIOptions_AppliesOptionsInOrder(t *testing.T) {
	t.Parallel()

	opts, err := NewAPIOptions(
		WithCORSEnabled(true),
		WithCORSAllowOrigins([]string{"https://app.example.com"}),
		WithCORSAllowMethods([]string{"GET"}),
		WithCORSAllowHeaders([]string{"Accept"}),
		WithCORSExposeHeaders([]string{"X-Request-ID"}),
		WithCORSAllowCredentials(true),
		WithCORSMaxAge(time.Minute),
		WithShutdownTimeout(3*time.Second),
		WithShutdownTimeout(7*time.Second), // later options win
	)
	require.NoError(t, err)

	require.True(t, opts.CORS.Enabled)
	require.Equal(t, []string{"https://app.example.com"}, opts.CORS.AllowOrigins)
	require.Equal(t, []string{"GET"}, opts.CORS.AllowMethods)
	require.Equal(t, []string{"Accept"}, opts.CORS.AllowedHeaders)
	require.Equal(t, []string{"X-Request-ID"}, opts.CORS.ExposedHeaders)
	require.True(t, opts.CORS.AllowCredentials)
	require.Equal(t, time.Minute, opts.CORS.MaxAge)
	require.Equal(t, 7*time.Second, opts.ShutdownTimeout)
}

func TestNewAPIOptions_IgnoresEmptyAndNonPositiveValues(t *testing.T) {
	t.Parallel()

	opts, err := NewAPIOptions(
		nil,
		WithCORSAllowMethods(nil),
		WithCORSAllowHeaders(nil),
		WithCORSMaxAge(0),
		WithShutdownTimeout(-time.Second),
	)
	require.NoError(t, err)

	require.Equal(t, DefaultCORSAllowMethods(), opts.CORS.AllowMethods)
	require.Equal(t, DefaultCORSAllowHeaders(), opts.CORS.AllowedHeaders)
	require.Equal(t, DefaultCORSMaxAge(), opts.CORS.MaxAge)
	require.Equal(t, DefaultAPIShutdownTimeout(), opts.ShutdownTimeout)
}

func TestNewAPIOptions_PropagatesOptionErrors(t *testing.T) {
	t.Parallel()

	boom := func(*APIOptions) error { return fmt.Errorf("boom") }

	_, err := NewAPIOptions(WithCORSEnabled(true), boom)
	require.ErrorContains(t, err, "boom")
}
