package contracts

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aether-ai/mcpregd/internal/domain"
	"github.com/aether-ai/mcpregd/internal/protocol"
)

// ProtocolClient is one MCP connection to one server. The manager owns one per
// registered, enabled server; tests substitute fakes.
type ProtocolClient interface {
	// Connect establishes the transport and performs the initialize handshake.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down, rejecting in-flight requests.
	Disconnect() error

	// IsConnected reports whether the handshake completed and the transport is
	// still up.
	IsConnected() bool

	// ServerInfo returns the implementation details reported at handshake time.
	ServerInfo() mcp.Implementation

	// Ping checks protocol-level liveness.
	Ping(ctx context.Context) error

	// ListTools returns the tools the server advertises.
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool invokes one tool with the given arguments.
	CallTool(ctx context.Context, name string, args map[string]any) (*protocol.ToolResult, error)

	// ListResources returns the resources the server advertises.
	ListResources(ctx context.Context) ([]mcp.Resource, error)

	// ReadResource fetches one resource's contents, kept opaque.
	ReadResource(ctx context.Context, uri string) (json.RawMessage, error)

	// ListPrompts returns the prompts the server advertises.
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)

	// GetPrompt fetches one rendered prompt, kept opaque.
	GetPrompt(ctx context.Context, name string, args map[string]string) (json.RawMessage, error)
}

// ClientFactory builds a protocol client for a descriptor.
type ClientFactory func(d domain.ServerDescriptor) ProtocolClient
