package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// ProtocolStdio launches the server as a local child process speaking
	// newline-delimited JSON-RPC over stdin/stdout.
	ProtocolStdio Protocol = "stdio"

	// ProtocolSSE talks to the server over an HTTP server-sent-events stream.
	ProtocolSSE Protocol = "sse"

	// ProtocolWebSocket talks to the server over a WebSocket connection.
	ProtocolWebSocket Protocol = "websocket"
)

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api-key"
	AuthBasic  AuthType = "basic"
)

const (
	// DefaultHealthCheckInterval is the recurring probe interval applied when a
	// descriptor does not specify one.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultHealthCheckTimeout bounds a single probe.
	DefaultHealthCheckTimeout = 5 * time.Second

	// DefaultRetryCount is the retry budget applied when a descriptor enables
	// retries without specifying a count.
	DefaultRetryCount = 3

	// DefaultAPIKeyHeader is the header used for api-key authentication when the
	// descriptor does not name one.
	DefaultAPIKeyHeader = "X-API-Key"
)

// Protocol identifies the wire transport used to reach a tool server.
type Protocol string

// AuthType identifies the authentication scheme used when contacting a tool server.
type AuthType string

// Millis is a duration that marshals as an integer number of milliseconds,
// matching the wire format used by descriptors (interval_ms, timeout_ms, ...).
type Millis time.Duration

// Duration returns the value as a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m)
}

// MarshalJSON renders the duration as whole milliseconds.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(m).Milliseconds())
}

// UnmarshalJSON accepts an integer number of milliseconds.
func (m *Millis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration must be an integer number of milliseconds: %w", err)
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// MarshalYAML renders the duration as whole milliseconds.
func (m Millis) MarshalYAML() (any, error) {
	return time.Duration(m).Milliseconds(), nil
}

// UnmarshalYAML accepts an integer number of milliseconds.
func (m *Millis) UnmarshalYAML(unmarshal func(any) error) error {
	var ms int64
	if err := unmarshal(&ms); err != nil {
		return fmt.Errorf("duration must be an integer number of milliseconds: %w", err)
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// Authentication describes how to authenticate against a tool server.
// The zero value means no authentication.
type Authentication struct {
	Type     AuthType `json:"type,omitempty"     yaml:"type,omitempty"`
	Token    string   `json:"token,omitempty"    yaml:"token,omitempty"`
	Header   string   `json:"header,omitempty"   yaml:"header,omitempty"`
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`
}

// HealthCheckConfig controls the recurring health probes for one server.
type HealthCheckConfig struct {
	Enabled  bool   `json:"enabled"           yaml:"enabled"`
	Interval Millis `json:"interval_ms"       yaml:"interval_ms"`
	Timeout  Millis `json:"timeout_ms"        yaml:"timeout_ms"`
	Retries  int    `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// RetryPolicy controls in-probe retries for one server.
type RetryPolicy struct {
	Enabled           bool    `json:"enabled"                     yaml:"enabled"`
	MaxRetries        int     `json:"maxRetries,omitempty"        yaml:"maxRetries,omitempty"`
	BackoffMultiplier float64 `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
	InitialDelay      Millis  `json:"initialDelay_ms,omitempty"   yaml:"initialDelay_ms,omitempty"`
}

// ServerDescriptor is the declarative identity of one remote tool-providing server.
// The ID is immutable once the descriptor has been registered.
type ServerDescriptor struct {
	ID             string            `json:"id"                       yaml:"id"`
	Name           string            `json:"name"                     yaml:"name"`
	Description    string            `json:"description,omitempty"    yaml:"description,omitempty"`
	Endpoint       string            `json:"endpoint"                 yaml:"endpoint"`
	Protocol       Protocol          `json:"protocol,omitempty"       yaml:"protocol,omitempty"`
	Command        string            `json:"command,omitempty"        yaml:"command,omitempty"`
	Args           []string          `json:"args,omitempty"           yaml:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty"            yaml:"env,omitempty"`
	Authentication Authentication    `json:"authentication,omitempty" yaml:"authentication,omitempty"`
	Enabled        bool              `json:"enabled"                  yaml:"enabled"`
	HealthCheck    HealthCheckConfig `json:"healthCheck"              yaml:"healthCheck"`
	RetryPolicy    RetryPolicy       `json:"retryPolicy"              yaml:"retryPolicy"`
	Tags           []string          `json:"tags,omitempty"           yaml:"tags,omitempty"`
}

// ApplyDefaults fills zero-valued optional fields with their documented defaults.
// Call after decoding and before validation so that defaulted values are what
// get validated and stored. Enabled defaults are the caller's concern, since a
// decoded 'false' is indistinguishable from an absent value here.
func (d *ServerDescriptor) ApplyDefaults() {
	if d.Protocol == "" {
		d.Protocol = ProtocolStdio
	}
	if d.Authentication.Type == "" {
		d.Authentication.Type = AuthNone
	}
	if d.Authentication.Type == AuthAPIKey && d.Authentication.Header == "" {
		d.Authentication.Header = DefaultAPIKeyHeader
	}
	if d.HealthCheck.Interval == 0 {
		d.HealthCheck.Interval = Millis(DefaultHealthCheckInterval)
	}
	if d.HealthCheck.Timeout == 0 {
		d.HealthCheck.Timeout = Millis(DefaultHealthCheckTimeout)
	}
	if d.RetryPolicy.Enabled {
		if d.RetryPolicy.MaxRetries == 0 {
			d.RetryPolicy.MaxRetries = DefaultRetryCount
		}
		if d.RetryPolicy.BackoffMultiplier == 0 {
			d.RetryPolicy.BackoffMultiplier = 2
		}
		if d.RetryPolicy.InitialDelay == 0 {
			d.RetryPolicy.InitialDelay = Millis(time.Second)
		}
	}
}

// HasTag reports whether the descriptor carries the given tag.
func (d *ServerDescriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Registration wraps a ServerDescriptor with provenance. The descriptor is
// replaced wholesale on update; RegisteredAt is preserved while RegisteredBy
// always reflects the most recent writer.
type Registration struct {
	Server       ServerDescriptor `json:"server"`
	RegisteredAt time.Time        `json:"registeredAt"`
	RegisteredBy string           `json:"registeredBy"`
	Version      string           `json:"version,omitempty"`
}
