// Package contracts defines the interfaces crossed between components, so the
// API layer and daemon wiring depend on behavior rather than implementations.
package contracts

import (
	"context"

	"github.com/aether-ai/mcpregd/internal/domain"
)

// DescriptorValidator checks server descriptors, collecting every violation.
type DescriptorValidator interface {
	// Validate checks a single descriptor.
	Validate(d domain.ServerDescriptor) domain.ValidationResult

	// ValidateList checks a batch, additionally rejecting duplicate ids within
	// the batch itself.
	ValidateList(descriptors []domain.ServerDescriptor) domain.ValidationResult
}

// HealthMonitor supervises recurring health probes for registered servers.
type HealthMonitor interface {
	// AddServer starts supervising a descriptor: one immediate probe, then
	// interval-based probing. Disabled servers get a disabled status and no
	// probes.
	AddServer(d domain.ServerDescriptor)

	// UpdateServer fully restarts supervision with the new configuration.
	// Accumulated metrics are discarded.
	UpdateServer(d domain.ServerDescriptor)

	// SetServerEnabled pauses or resumes probing for a supervised server while
	// keeping its accumulated metrics.
	SetServerEnabled(id string, enabled bool)

	// RemoveServer stops probing and discards the server's status and metrics.
	RemoveServer(id string)

	// Status returns the current probe-derived status for the server.
	Status(id string) (domain.ServerStatus, bool)

	// Metrics returns the accumulated probe counters for the server.
	Metrics(id string) (domain.ServerMetrics, bool)

	// Check runs one immediate out-of-band probe and reports whether it
	// succeeded. Unknown ids report false rather than an error.
	Check(ctx context.Context, id string) bool

	// Stop cancels all supervision.
	Stop()
}

// ServerRegistry owns the authoritative set of registered server descriptors.
type ServerRegistry interface {
	// Register validates and stores a new descriptor, starting health
	// supervision. The error is a sentinel (e.g. ErrServerAlreadyExists) when
	// present; the result always carries the same information as data.
	Register(d domain.ServerDescriptor, actor, version string) (domain.ValidationResult, error)

	// Update validates and replaces an existing descriptor, restarting health
	// supervision with the new configuration.
	Update(id string, d domain.ServerDescriptor, actor string) (domain.ValidationResult, error)

	// Unregister removes a server. Removing an absent id reports false, never
	// an error.
	Unregister(id string) bool

	// Get returns the registration for an id.
	Get(id string) (domain.Registration, bool)

	// List returns registrations matching the options plus the pre-pagination
	// total.
	List(opts domain.ListOptions) ([]domain.Registration, int)

	// Enable resumes health supervision for a disabled server.
	Enable(id string) bool

	// Disable stops health supervision and forces the server's status to
	// disabled.
	Disable(id string) bool

	// Health joins the descriptor with its current status and metrics.
	Health(id string) (domain.ServerHealth, bool)

	// HealthAll returns the joined health view for every registered server.
	HealthAll() []domain.ServerHealth

	// CheckNow runs one immediate probe for the server.
	CheckNow(ctx context.Context, id string) bool
}
