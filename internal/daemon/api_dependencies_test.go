package daemon

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/events"
	"github.com/aether-ai/mcpregd/internal/health"
	"github.com/aether-ai/mcpregd/internal/manager"
	"github.com/aether-ai/mcpregd/internal/registry"
	"github.com/aether-ai/mcpregd/internal/validate"
)

func newTestDeps(t *testing.T) APIDependencies {
	t.Helper()

	logger := hclog.NewNullLogger()
	bus := events.NewBus(logger)

	validator, err := validate.NewValidator()
	require.NoError(t, err)

	monitor := health.NewMonitor(logger, bus)
	reg := registry.New(logger, validator, monitor, bus)
	mgr := manager.New(logger, reg, bus)

	t.Cleanup(func() {
		monitor.Stop()
		bus.Close()
	})

	return APIDependencies{
		Addr:        "localhost:8390",
		Registry:    reg,
		Validator:   validator,
		ToolManager: mgr,
		Logger:      logger,
	}
}

func TestAPIDependencies_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(d *APIDependencies)
		wantErr string
	}{
		{
			name:   "complete dependencies",
			mutate: func(d *APIDependencies) {},
		},
		{
			name: "bad address",
			mutate: func(d *APIDependencies) {
				d.Addr = "no-port"
			},
			wantErr: "invalid API address",
		},
		{
			name: "nil registry",
			mutate: func(d *APIDependencies) {
				d.Registry = nil
			},
			wantErr: "registry cannot be nil",
		},
		{
			name: "typed nil registry",
			mutate: func(d *APIDependencies) {
				d.Registry = (*registry.Registry)(nil)
			},
			wantErr: "registry cannot be nil",
		},
		{
			name: "nil validator",
			mutate: func(d *APIDependencies) {
				d.Validator = (contracts.DescriptorValidator)(nil)
			},
			wantErr: "validator cannot be nil",
		},
		{
			name: "nil tool manager",
			mutate: func(d *APIDependencies) {
				d.ToolManager = nil
			},
			wantErr: "tool manager cannot be nil",
		},
		{
			name: "nil logger",
			mutate: func(d *APIDependencies) {
				d.Logger = nil
			},
			wantErr: "logger cannot be nil",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps(t)
			tc.mutate(&deps)

			err := deps.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestNewAPIDependencies(t *testing.T) {
	valid := newTestDeps(t)

	deps, err := NewAPIDependencies(valid.Logger, valid.Registry, valid.Validator, valid.ToolManager, valid.Addr)
	require.NoError(t, err)
	require.Equal(t, valid.Addr, deps.Addr)

	_, err = NewAPIDependencies(valid.Logger, valid.Registry, valid.Validator, valid.ToolManager, "")
	require.ErrorContains(t, err, "invalid API address")
}

func TestValidateAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr string
	}{
		{name: "host and port", addr: "0.0.0.0:8390"},
		{name: "hostname", addr: "localhost:8390"},
		{name: "missing port", addr: "localhost", wantErr: "address must be host:port"},
		{name: "empty host", addr: ":8390", wantErr: "host cannot be empty"},
		{name: "non-numeric port", addr: "localhost:http", wantErr: "port must be numeric"},
		{name: "port zero", addr: "localhost:0", wantErr: "out of range"},
		{name: "port too large", addr: "localhost:70000", wantErr: "out of range"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validateAddr(tc.addr)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}
