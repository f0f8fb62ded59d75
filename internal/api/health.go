package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	apperr "github.com/aether-ai/mcpregd/internal/errors"
)

// ServerHealthResponse wraps one server's joined health view.
type ServerHealthResponse struct {
	Body domain.ServerHealth
}

// AllHealthResponse wraps the health view of every registered server.
type AllHealthResponse struct {
	Body struct {
		Servers []domain.ServerHealth `json:"servers"`
	}
}

// HealthCheckResponse reports the outcome of an on-demand probe.
type HealthCheckResponse struct {
	Body struct {
		ServerID  string    `json:"serverId"`
		Healthy   bool      `json:"healthy"`
		Timestamp time.Time `json:"timestamp"`
	}
}

// LivenessResponse is the daemon's own liveness signal.
type LivenessResponse struct {
	Body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
}

// RegisterHealthRoutes sets up the health endpoints under the servers group.
func RegisterHealthRoutes(serversAPI huma.API, registry contracts.ServerRegistry) {
	tags := []string{"Health"}

	// Static path registered alongside /{id}; the router prefers the static
	// segment.
	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "allServerHealth",
			Method:      http.MethodGet,
			Path:        "/health/all",
			Summary:     "Health of every registered server",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*AllHealthResponse, error) {
			resp := &AllHealthResponse{}
			resp.Body.Servers = registry.HealthAll()
			return resp, nil
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "serverHealth",
			Method:      http.MethodGet,
			Path:        "/{id}/health",
			Summary:     "Health of one server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*ServerHealthResponse, error) {
			health, ok := registry.Health(input.ID)
			if !ok {
				return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, input.ID)
			}
			return &ServerHealthResponse{Body: health}, nil
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "checkServerHealth",
			Method:      http.MethodPost,
			Path:        "/{id}/health-check",
			Summary:     "Run an immediate health check",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*HealthCheckResponse, error) {
			if _, ok := registry.Get(input.ID); !ok {
				return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, input.ID)
			}
			resp := &HealthCheckResponse{}
			resp.Body.ServerID = input.ID
			resp.Body.Healthy = registry.CheckNow(ctx, input.ID)
			resp.Body.Timestamp = time.Now().UTC()
			return resp, nil
		},
	)
}

// RegisterLivenessRoute sets up the daemon's own liveness endpoint.
func RegisterLivenessRoute(routerAPI huma.API, path string) {
	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "liveness",
			Method:      http.MethodGet,
			Path:        path,
			Summary:     "Daemon liveness",
			Tags:        []string{"Health"},
		},
		func(ctx context.Context, _ *struct{}) (*LivenessResponse, error) {
			resp := &LivenessResponse{}
			resp.Body.Status = "healthy"
			resp.Body.Timestamp = time.Now().UTC()
			return resp, nil
		},
	)
}
