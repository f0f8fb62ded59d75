// Package config loads the daemon's TOML configuration and the optional YAML
// seed file of server descriptors registered at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultAddr is the API bind address used when none is configured.
	DefaultAddr = "0.0.0.0:8390"

	// DefaultShutdownTimeout bounds graceful API shutdown.
	DefaultShutdownTimeout = 20 * time.Second

	// DefaultHistoryCapacity bounds the tool execution history.
	DefaultHistoryCapacity = 100
)

// DaemonConfig is the complete daemon configuration.
type DaemonConfig struct {
	API     APIConfig     `toml:"api"`
	Servers ServersConfig `toml:"servers"`
	History HistoryConfig `toml:"history"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Addr                   string     `toml:"addr"`
	ShutdownTimeoutSeconds int        `toml:"shutdown_timeout_seconds"`
	CORS                   CORSConfig `toml:"cors"`
}

// CORSConfig configures cross-origin request handling for the API.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	AllowOrigins     []string `toml:"allow_origins"`
	AllowMethods     []string `toml:"allow_methods"`
	AllowHeaders     []string `toml:"allow_headers"`
	ExposeHeaders    []string `toml:"expose_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAgeSeconds    int      `toml:"max_age_seconds"`
}

// ServersConfig points at the seed file of descriptors registered at startup.
type ServersConfig struct {
	File string `toml:"file"`
}

// HistoryConfig bounds the tool execution history.
type HistoryConfig struct {
	Capacity int `toml:"capacity"`
}

// Default returns the configuration used when no file is given.
func Default() DaemonConfig {
	return DaemonConfig{
		API: APIConfig{
			Addr:                   DefaultAddr,
			ShutdownTimeoutSeconds: int(DefaultShutdownTimeout.Seconds()),
		},
		History: HistoryConfig{
			Capacity: DefaultHistoryCapacity,
		},
	}
}

// Load reads a TOML configuration file, filling unset fields with defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (DaemonConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if cfg.API.Addr == "" {
		cfg.API.Addr = DefaultAddr
	}
	if cfg.API.ShutdownTimeoutSeconds <= 0 {
		cfg.API.ShutdownTimeoutSeconds = int(DefaultShutdownTimeout.Seconds())
	}
	if cfg.History.Capacity <= 0 {
		cfg.History.Capacity = DefaultHistoryCapacity
	}

	return cfg, nil
}

// ShutdownTimeout returns the configured graceful shutdown bound.
func (c APIConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// MaxAge returns the configured preflight cache duration.
func (c CORSConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}
