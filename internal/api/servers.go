package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	apperr "github.com/aether-ai/mcpregd/internal/errors"
)

// defaultActor attributes registrations that arrive without an explicit
// X-Registered-By header.
const defaultActor = "api"

// ListServersRequest carries the filter, sort, and pagination query parameters
// for server listings.
type ListServersRequest struct {
	Enabled   string   `query:"enabled"   doc:"Filter by enabled state"       enum:",true,false"`
	Protocol  string   `query:"protocol"  doc:"Filter by protocol"            enum:",stdio,sse,websocket"`
	Tags      []string `query:"tag"       doc:"Match servers carrying any of these tags"`
	SortBy    string   `query:"sortBy"    doc:"Sort field"                    enum:",id,name,registeredAt,protocol"`
	SortOrder string   `query:"sortOrder" doc:"Sort direction"                enum:",asc,desc"`
	Page      int      `query:"page"      doc:"1-indexed page number"         minimum:"0"`
	Limit     int      `query:"limit"     doc:"Page size, 0 means everything" minimum:"0"`
}

// ServerListResponse wraps a page of registrations plus the pre-pagination total.
type ServerListResponse struct {
	Body struct {
		Servers []domain.Registration `json:"servers"`
		Total   int                   `json:"total"`
		Page    int                   `json:"page,omitempty"`
		Limit   int                   `json:"limit,omitempty"`
	}
}

// RegisterServerRequest carries a new server descriptor plus provenance.
type RegisterServerRequest struct {
	RegisteredBy string        `header:"X-Registered-By" doc:"Actor recorded as the registrant"`
	Version      string        `header:"X-Server-Version" doc:"Version recorded for this registration"`
	Body         ServerPayload `doc:"Server descriptor to register"`
}

// ServerRequest addresses one server by id.
type ServerRequest struct {
	ID string `path:"id" doc:"Server identifier" example:"github-tools"`
}

// UpdateServerRequest carries a replacement descriptor for an existing server.
type UpdateServerRequest struct {
	ID           string        `path:"id" doc:"Server identifier"`
	RegisteredBy string        `header:"X-Registered-By" doc:"Actor recorded as the updater"`
	Body         ServerPayload `doc:"Replacement server descriptor"`
}

// RegistrationResponse wraps one stored registration.
type RegistrationResponse struct {
	Body domain.Registration
}

// CreatedRegistrationResponse wraps one freshly stored registration.
type CreatedRegistrationResponse struct {
	Body domain.Registration
}

// UnregisterResponse confirms a server removal.
type UnregisterResponse struct {
	Body struct {
		ServerID string `json:"serverId"`
		Deleted  bool   `json:"deleted"`
	}
}

// RegisterServerRoutes sets up the server CRUD and lifecycle endpoints.
func RegisterServerRoutes(routerAPI huma.API, registry contracts.ServerRegistry, apiPathPrefix string) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Servers"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List registered servers",
			Tags:        tags,
		},
		func(ctx context.Context, input *ListServersRequest) (*ServerListResponse, error) {
			return handleListServers(registry, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "registerServer",
			Method:        http.MethodPost,
			Summary:       "Register a server",
			Tags:          tags,
			DefaultStatus: http.StatusCreated,
		},
		func(ctx context.Context, input *RegisterServerRequest) (*CreatedRegistrationResponse, error) {
			return handleRegisterServer(registry, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*RegistrationResponse, error) {
			return handleGetServer(registry, input.ID)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "updateServer",
			Method:      http.MethodPut,
			Path:        "/{id}",
			Summary:     "Update a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *UpdateServerRequest) (*RegistrationResponse, error) {
			return handleUpdateServer(registry, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "unregisterServer",
			Method:      http.MethodDelete,
			Path:        "/{id}",
			Summary:     "Unregister a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*UnregisterResponse, error) {
			return handleUnregisterServer(registry, input.ID)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "enableServer",
			Method:      http.MethodPost,
			Path:        "/{id}/enable",
			Summary:     "Enable a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*RegistrationResponse, error) {
			if !registry.Enable(input.ID) {
				return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, input.ID)
			}
			return handleGetServer(registry, input.ID)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "disableServer",
			Method:      http.MethodPost,
			Path:        "/{id}/disable",
			Summary:     "Disable a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerRequest) (*RegistrationResponse, error) {
			if !registry.Disable(input.ID) {
				return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, input.ID)
			}
			return handleGetServer(registry, input.ID)
		},
	)

	RegisterHealthRoutes(serversAPI, registry)
}

// handleListServers translates query parameters into list options and runs the
// listing.
func handleListServers(registry contracts.ServerRegistry, input *ListServersRequest) (*ServerListResponse, error) {
	opts := domain.ListOptions{
		Protocol:  domain.Protocol(input.Protocol),
		Tags:      input.Tags,
		SortBy:    domain.SortField(input.SortBy),
		SortOrder: domain.SortOrder(input.SortOrder),
		Page:      input.Page,
		Limit:     input.Limit,
	}
	switch input.Enabled {
	case "true":
		enabled := true
		opts.Enabled = &enabled
	case "false":
		enabled := false
		opts.Enabled = &enabled
	}

	servers, total := registry.List(opts)

	resp := &ServerListResponse{}
	resp.Body.Servers = servers
	resp.Body.Total = total
	resp.Body.Page = input.Page
	resp.Body.Limit = input.Limit

	return resp, nil
}

func handleRegisterServer(registry contracts.ServerRegistry, input *RegisterServerRequest) (*CreatedRegistrationResponse, error) {
	actor := input.RegisteredBy
	if actor == "" {
		actor = defaultActor
	}

	descriptor := input.Body.ToDomain()
	result, err := registry.Register(descriptor, actor, input.Version)
	if err != nil {
		if errors.Is(err, apperr.ErrServerValidationFailed) {
			return nil, validationError(result)
		}
		return nil, err
	}

	reg, ok := registry.Get(descriptor.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, descriptor.ID)
	}

	return &CreatedRegistrationResponse{Body: reg}, nil
}

func handleGetServer(registry contracts.ServerRegistry, id string) (*RegistrationResponse, error) {
	reg, ok := registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, id)
	}
	return &RegistrationResponse{Body: reg}, nil
}

func handleUnregisterServer(registry contracts.ServerRegistry, id string) (*UnregisterResponse, error) {
	if !registry.Unregister(id) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, id)
	}
	resp := &UnregisterResponse{}
	resp.Body.ServerID = id
	resp.Body.Deleted = true
	return resp, nil
}

func handleUpdateServer(registry contracts.ServerRegistry, input *UpdateServerRequest) (*RegistrationResponse, error) {
	actor := input.RegisteredBy
	if actor == "" {
		actor = defaultActor
	}

	result, err := registry.Update(input.ID, input.Body.ToDomain(), actor)
	if err != nil {
		if errors.Is(err, apperr.ErrServerValidationFailed) {
			return nil, validationError(result)
		}
		return nil, err
	}

	return handleGetServer(registry, input.ID)
}
