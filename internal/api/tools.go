package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	"github.com/aether-ai/mcpregd/internal/manager"
)

// ServerToolsRequest addresses one server's tool listing.
type ServerToolsRequest struct {
	ID string `path:"id" doc:"Server identifier"`
}

// ToolsResponse wraps one server's tool listing.
type ToolsResponse struct {
	Body struct {
		Tools []mcp.Tool `json:"tools"`
	}
}

// AllToolsResponse wraps the aggregate tool listing across servers.
type AllToolsResponse struct {
	Body struct {
		Servers []manager.ServerTools `json:"servers"`
	}
}

// AllResourcesResponse wraps the aggregate resource listing across servers.
type AllResourcesResponse struct {
	Body struct {
		Servers []manager.ServerResources `json:"servers"`
	}
}

// AllPromptsResponse wraps the aggregate prompt listing across servers.
type AllPromptsResponse struct {
	Body struct {
		Servers []manager.ServerPrompts `json:"servers"`
	}
}

// ToolCallRequest carries one tool invocation.
type ToolCallRequest struct {
	ID   string         `path:"id"   doc:"Server identifier"`
	Tool string         `path:"tool" doc:"Tool name"`
	Body map[string]any `doc:"Tool arguments"`
}

// ToolCallResponse wraps a tool invocation's outcome.
type ToolCallResponse struct {
	Body struct {
		Content json.RawMessage `json:"content"`
		IsError bool            `json:"isError,omitempty"`
	}
}

// ExecutionsRequest filters the execution history.
type ExecutionsRequest struct {
	Server string `query:"server" doc:"Restrict to one server"`
	Limit  int    `query:"limit"  doc:"Maximum entries, newest first" minimum:"0"`
}

// ExecutionsResponse wraps the retained execution history.
type ExecutionsResponse struct {
	Body struct {
		Executions []domain.ToolExecution `json:"executions"`
	}
}

// ConnectionsResponse wraps the manager's connection statuses.
type ConnectionsResponse struct {
	Body struct {
		Connections []manager.ConnectionStatus `json:"connections"`
	}
}

// RegisterToolRoutes sets up tool, resource, prompt, and execution endpoints.
func RegisterToolRoutes(routerAPI huma.API, registry contracts.ServerRegistry, toolManager *manager.Manager) {
	tags := []string{"Tools"}

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "allTools",
			Method:      http.MethodGet,
			Path:        "/tools",
			Summary:     "Tools across all connected servers",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*AllToolsResponse, error) {
			resp := &AllToolsResponse{}
			resp.Body.Servers = toolManager.AllTools(ctx)
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "allResources",
			Method:      http.MethodGet,
			Path:        "/resources",
			Summary:     "Resources across all connected servers",
			Tags:        []string{"Resources"},
		},
		func(ctx context.Context, _ *struct{}) (*AllResourcesResponse, error) {
			resp := &AllResourcesResponse{}
			resp.Body.Servers = toolManager.AllResources(ctx)
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "allPrompts",
			Method:      http.MethodGet,
			Path:        "/prompts",
			Summary:     "Prompts across all connected servers",
			Tags:        []string{"Prompts"},
		},
		func(ctx context.Context, _ *struct{}) (*AllPromptsResponse, error) {
			resp := &AllPromptsResponse{}
			resp.Body.Servers = toolManager.AllPrompts(ctx)
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "listServerTools",
			Method:      http.MethodGet,
			Path:        "/servers/{id}/tools",
			Summary:     "Tools advertised by one server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerToolsRequest) (*ToolsResponse, error) {
			tools, err := toolManager.ListTools(ctx, input.ID)
			if err != nil {
				return nil, err
			}
			resp := &ToolsResponse{}
			resp.Body.Tools = tools
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "executeTool",
			Method:      http.MethodPost,
			Path:        "/servers/{id}/tools/{tool}",
			Summary:     "Execute a tool on a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ToolCallRequest) (*ToolCallResponse, error) {
			result, err := toolManager.ExecuteTool(ctx, input.ID, input.Tool, input.Body)
			if err != nil {
				return nil, err
			}
			resp := &ToolCallResponse{}
			resp.Body.Content = result.Content
			resp.Body.IsError = result.IsError
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "listExecutions",
			Method:      http.MethodGet,
			Path:        "/executions",
			Summary:     "Recent tool executions, newest first",
			Tags:        tags,
		},
		func(ctx context.Context, input *ExecutionsRequest) (*ExecutionsResponse, error) {
			resp := &ExecutionsResponse{}
			resp.Body.Executions = toolManager.History(input.Server, input.Limit)
			return resp, nil
		},
	)

	huma.Register(
		routerAPI,
		huma.Operation{
			OperationID: "listConnections",
			Method:      http.MethodGet,
			Path:        "/connections",
			Summary:     "Protocol connection status per server",
			Tags:        []string{"Servers"},
		},
		func(ctx context.Context, _ *struct{}) (*ConnectionsResponse, error) {
			resp := &ConnectionsResponse{}
			resp.Body.Connections = toolManager.Connections()
			return resp, nil
		},
	)
}
