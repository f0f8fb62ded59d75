package daemon

import (
	"fmt"
	"net"
	"reflect"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/manager"
)

// APIDependencies contains the required external dependencies for the API server.
// NewAPIDependencies should be used to create instances of APIDependencies.
type APIDependencies struct {
	// Addr specifies the network address to bind (e.g., "0.0.0.0:8390").
	Addr string

	// Registry owns the registered server descriptors.
	Registry contracts.ServerRegistry

	// Validator checks descriptors for dry-run validation requests.
	Validator contracts.DescriptorValidator

	// ToolManager maintains protocol connections and runs tool calls.
	ToolManager *manager.Manager

	// Logger for API server operations.
	Logger hclog.Logger
}

// NewAPIDependencies creates and validates APIDependencies.
func NewAPIDependencies(
	logger hclog.Logger,
	registry contracts.ServerRegistry,
	validator contracts.DescriptorValidator,
	toolManager *manager.Manager,
	addr string,
) (APIDependencies, error) {
	deps := APIDependencies{
		Addr:        addr,
		Registry:    registry,
		Validator:   validator,
		ToolManager: toolManager,
		Logger:      logger,
	}

	if err := deps.Validate(); err != nil {
		return APIDependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
	}
	if d.Registry == nil || reflect.ValueOf(d.Registry).IsNil() {
		return fmt.Errorf("registry cannot be nil")
	}
	if d.Validator == nil || reflect.ValueOf(d.Validator).IsNil() {
		return fmt.Errorf("validator cannot be nil")
	}
	if d.ToolManager == nil {
		return fmt.Errorf("tool manager cannot be nil")
	}
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}

// validateAddr checks that an address is host:port with a valid port.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("address must be host:port: %w", err)
	}
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port %d out of range", portNum)
	}
	return nil
}
