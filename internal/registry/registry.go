// Package registry owns the authoritative map of registered tool-server
// descriptors. It orchestrates validation, keeps the health monitor's
// supervision in lockstep with its own map (every mutation here performs the
// matching monitor call in the same step, so neither side holds orphans), and
// publishes lifecycle events.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	apperr "github.com/aether-ai/mcpregd/internal/errors"
	"github.com/aether-ai/mcpregd/internal/events"
	"github.com/aether-ai/mcpregd/internal/filter"
)

// Registry is the server registry. New should be used to create instances.
// Safe for concurrent use.
type Registry struct {
	logger    hclog.Logger
	validator contracts.DescriptorValidator
	monitor   contracts.HealthMonitor
	bus       *events.Bus

	mu      sync.RWMutex
	servers map[string]domain.Registration
}

// New creates an empty registry delegating probe supervision to the monitor.
func New(
	logger hclog.Logger,
	validator contracts.DescriptorValidator,
	monitor contracts.HealthMonitor,
	bus *events.Bus,
) *Registry {
	return &Registry{
		logger:    logger.Named("registry"),
		validator: validator,
		monitor:   monitor,
		bus:       bus,
		servers:   make(map[string]domain.Registration),
	}
}

// Register validates and stores a new descriptor, then starts health
// supervision for it (one immediate probe plus recurring probes). Failures are
// reported both as a sentinel error and as data in the result, so API callers
// can treat every outcome uniformly.
func (r *Registry) Register(d domain.ServerDescriptor, actor, version string) (domain.ValidationResult, error) {
	d.ApplyDefaults()

	r.mu.Lock()
	if _, exists := r.servers[d.ID]; exists {
		r.mu.Unlock()
		return domain.Invalid(domain.FieldError{
			Field:   "id",
			Message: fmt.Sprintf("server %q is already registered", d.ID),
			Value:   d.ID,
		}), fmt.Errorf("%w: %s", apperr.ErrServerAlreadyExists, d.ID)
	}

	if result := r.validator.Validate(d); !result.Valid {
		r.mu.Unlock()
		return result, fmt.Errorf("%w: %s", apperr.ErrServerValidationFailed, d.ID)
	}

	r.servers[d.ID] = domain.Registration{
		Server:       d,
		RegisteredAt: time.Now().UTC(),
		RegisteredBy: actor,
		Version:      version,
	}
	r.monitor.AddServer(d)
	r.mu.Unlock()

	r.logger.Info("Registered server", "server", d.ID, "protocol", d.Protocol, "actor", actor)
	r.bus.Publish(events.TypeServerRegistered, d.ID, nil)

	return domain.Valid(), nil
}

// Update validates and replaces an existing descriptor. The id is immutable;
// RegisteredAt is preserved while RegisteredBy reflects the updater. Health
// supervision is fully restarted with the new configuration, which discards
// accumulated metrics by design.
func (r *Registry) Update(id string, d domain.ServerDescriptor, actor string) (domain.ValidationResult, error) {
	if d.ID != id {
		return domain.Invalid(domain.FieldError{
			Field:   "id",
			Message: "server ID cannot be changed after registration",
			Value:   d.ID,
		}), fmt.Errorf("%w: %s", apperr.ErrImmutableServerID, id)
	}

	d.ApplyDefaults()

	r.mu.Lock()
	existing, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return domain.Invalid(domain.FieldError{
			Field:   "id",
			Message: fmt.Sprintf("server %q is not registered", id),
			Value:   id,
		}), fmt.Errorf("%w: %s", apperr.ErrServerNotFound, id)
	}

	if result := r.validator.Validate(d); !result.Valid {
		r.mu.Unlock()
		return result, fmt.Errorf("%w: %s", apperr.ErrServerValidationFailed, id)
	}

	r.servers[id] = domain.Registration{
		Server:       d,
		RegisteredAt: existing.RegisteredAt,
		RegisteredBy: actor,
		Version:      existing.Version,
	}
	r.monitor.UpdateServer(d)
	r.mu.Unlock()

	r.logger.Info("Updated server", "server", id, "actor", actor)
	r.bus.Publish(events.TypeServerUpdated, id, nil)

	return domain.Valid(), nil
}

// Unregister removes a server, stops its supervision, and discards its status
// and metrics. Removing an absent id reports false, never an error.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	if _, ok := r.servers[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.servers, id)
	r.monitor.RemoveServer(id)
	r.mu.Unlock()

	r.logger.Info("Unregistered server", "server", id)
	r.bus.Publish(events.TypeServerUnregistered, id, nil)

	return true
}

// Get returns the registration for an id.
func (r *Registry) Get(id string) (domain.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.servers[id]
	return reg, ok
}

// List returns registrations matching the options plus the pre-pagination
// total. Filtering happens first, then sorting, then pagination.
func (r *Registry) List(opts domain.ListOptions) ([]domain.Registration, int) {
	r.mu.RLock()
	all := make([]domain.Registration, 0, len(r.servers))
	for _, reg := range r.servers {
		all = append(all, reg)
	}
	r.mu.RUnlock()

	matched := filter.Apply(all, listPredicates(opts)...)
	filter.SortBy(matched, listComparator(opts.SortBy), opts.SortOrder == domain.SortDesc)
	total := len(matched)

	return filter.Paginate(matched, opts.Page, opts.Limit), total
}

// Enable flips the descriptor back to enabled and resumes probing from an
// unknown status. Reports false if the id is absent.
func (r *Registry) Enable(id string) bool {
	return r.setEnabled(id, true)
}

// Disable flips the descriptor to disabled, stops probing, and forces the
// status to disabled. Reports false if the id is absent.
func (r *Registry) Disable(id string) bool {
	return r.setEnabled(id, false)
}

func (r *Registry) setEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	reg, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	reg.Server.Enabled = enabled
	r.servers[id] = reg
	r.monitor.SetServerEnabled(id, enabled)
	r.mu.Unlock()

	r.logger.Info("Toggled server", "server", id, "enabled", enabled)
	r.bus.Publish(events.TypeServerUpdated, id, nil)

	return true
}

// Health joins the descriptor with its current status and metrics. The second
// return is false when the id is unknown or the monitor holds no entry for it,
// which the lockstep invariant should prevent for registered servers.
func (r *Registry) Health(id string) (domain.ServerHealth, bool) {
	r.mu.RLock()
	reg, ok := r.servers[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ServerHealth{}, false
	}

	status, ok := r.monitor.Status(id)
	if !ok {
		return domain.ServerHealth{}, false
	}
	metrics, ok := r.monitor.Metrics(id)
	if !ok {
		return domain.ServerHealth{}, false
	}

	return domain.ServerHealth{Server: reg.Server, Status: status, Metrics: metrics}, true
}

// HealthAll returns the joined health view for every registered server,
// ordered by id.
func (r *Registry) HealthAll() []domain.ServerHealth {
	regs, _ := r.List(domain.ListOptions{SortBy: domain.SortByID})

	all := make([]domain.ServerHealth, 0, len(regs))
	for _, reg := range regs {
		if health, ok := r.Health(reg.Server.ID); ok {
			all = append(all, health)
		}
	}
	return all
}

// CheckNow runs one immediate out-of-band probe for the server, without
// waiting for its next interval. Reports false if the id is absent or the
// probe failed.
func (r *Registry) CheckNow(ctx context.Context, id string) bool {
	r.mu.RLock()
	_, ok := r.servers[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.monitor.Check(ctx, id)
}

// listPredicates builds the filter set for the options. Tag filtering is
// any-match.
func listPredicates(opts domain.ListOptions) []filter.Predicate[domain.Registration] {
	var predicates []filter.Predicate[domain.Registration]

	if opts.Enabled != nil {
		want := *opts.Enabled
		predicates = append(predicates, func(reg domain.Registration) bool {
			return reg.Server.Enabled == want
		})
	}

	if opts.Protocol != "" {
		want := filter.NormalizeString(string(opts.Protocol))
		predicates = append(predicates, func(reg domain.Registration) bool {
			return filter.NormalizeString(string(reg.Server.Protocol)) == want
		})
	}

	if len(opts.Tags) > 0 {
		tags := opts.Tags
		predicates = append(predicates, func(reg domain.Registration) bool {
			for _, tag := range tags {
				if reg.Server.HasTag(tag) {
					return true
				}
			}
			return false
		})
	}

	return predicates
}

// listComparator maps a sort field to its comparator. Unrecognized fields fall
// back to id so listings stay deterministic.
func listComparator(field domain.SortField) func(a, b domain.Registration) int {
	switch field {
	case domain.SortByName:
		return func(a, b domain.Registration) int {
			return strings.Compare(a.Server.Name, b.Server.Name)
		}
	case domain.SortByRegisteredAt:
		return func(a, b domain.Registration) int {
			return a.RegisteredAt.Compare(b.RegisteredAt)
		}
	case domain.SortByProtocol:
		return func(a, b domain.Registration) int {
			return strings.Compare(string(a.Server.Protocol), string(b.Server.Protocol))
		}
	default:
		return func(a, b domain.Registration) int {
			return strings.Compare(a.Server.ID, b.Server.ID)
		}
	}
}
