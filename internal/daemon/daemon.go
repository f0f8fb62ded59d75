// Package daemon wires the validator, event bus, health monitor, registry,
// tool manager, and HTTP API into one supervised process.
package daemon

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/aether-ai/mcpregd/internal/config"
	"github.com/aether-ai/mcpregd/internal/events"
	"github.com/aether-ai/mcpregd/internal/health"
	"github.com/aether-ai/mcpregd/internal/manager"
	"github.com/aether-ai/mcpregd/internal/registry"
	"github.com/aether-ai/mcpregd/internal/validate"
)

// seedActor attributes registrations loaded from the seed file.
const seedActor = "seed"

// Daemon is the assembled process: registry, health monitor, tool manager,
// and API server sharing one event bus.
type Daemon struct {
	logger hclog.Logger
	cfg    config.DaemonConfig

	bus         *events.Bus
	monitor     *health.Monitor
	registry    *registry.Registry
	toolManager *manager.Manager
	apiServer   *APIServer
}

// New assembles a daemon from its configuration.
func New(logger hclog.Logger, cfg config.DaemonConfig) (*Daemon, error) {
	validator, err := validate.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build descriptor validator: %w", err)
	}

	bus := events.NewBus(logger)
	monitor := health.NewMonitor(logger, bus)
	reg := registry.New(logger, validator, monitor, bus)
	toolManager := manager.New(logger, reg, bus, manager.WithHistoryCapacity(cfg.History.Capacity))

	deps, err := NewAPIDependencies(logger, reg, validator, toolManager, cfg.API.Addr)
	if err != nil {
		return nil, err
	}

	apiServer, err := NewAPIServer(deps,
		WithCORSEnabled(cfg.API.CORS.Enabled),
		WithCORSAllowOrigins(cfg.API.CORS.AllowOrigins),
		WithCORSAllowMethods(cfg.API.CORS.AllowMethods),
		WithCORSAllowHeaders(cfg.API.CORS.AllowHeaders),
		WithCORSExposeHeaders(cfg.API.CORS.ExposeHeaders),
		WithCORSAllowCredentials(cfg.API.CORS.AllowCredentials),
		WithCORSMaxAge(cfg.API.CORS.MaxAge()),
		WithShutdownTimeout(cfg.API.ShutdownTimeout()),
	)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		logger:      logger.Named("daemon"),
		cfg:         cfg,
		bus:         bus,
		monitor:     monitor,
		registry:    reg,
		toolManager: toolManager,
		apiServer:   apiServer,
	}, nil
}

// Run starts the daemon and blocks until the context is canceled or the API
// server fails. Components are torn down in reverse dependency order.
func (d *Daemon) Run(ctx context.Context) error {
	d.toolManager.Start(ctx)

	if err := d.seedServers(); err != nil {
		d.shutdown()
		return err
	}

	err := d.apiServer.Start(ctx)

	d.shutdown()
	if err != nil && ctx.Err() != nil {
		// Canceled on purpose; a clean shutdown is not a failure.
		return nil
	}
	return err
}

// seedServers registers every descriptor from the configured seed file.
// A descriptor that fails validation aborts startup rather than silently
// running with a partial registry.
func (d *Daemon) seedServers() error {
	descriptors, err := config.LoadServers(d.cfg.Servers.File)
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return nil
	}

	for _, descriptor := range descriptors {
		result, err := d.registry.Register(descriptor, seedActor, "")
		if err != nil {
			for _, fieldErr := range result.Errors {
				d.logger.Error("Seed descriptor rejected",
					"server", descriptor.ID, "field", fieldErr.Field, "reason", fieldErr.Message)
			}
			return fmt.Errorf("failed to register seed server %q: %w", descriptor.ID, err)
		}
	}

	d.logger.Info("Seeded servers from file", "file", d.cfg.Servers.File, "count", len(descriptors))
	return nil
}

func (d *Daemon) shutdown() {
	d.toolManager.Stop()
	d.monitor.Stop()
	d.bus.Close()
}
