package protocol

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aether-ai/mcpregd/internal/domain"
)

// Transport is one bidirectional channel carrying opaque JSON-RPC frames.
// Implementations deliver inbound frames through the message handler and
// surface channel breakdown through the error and close handlers. Handlers
// must be set before Start.
type Transport interface {
	// Start establishes the channel and returns once it is confirmed open.
	Start(ctx context.Context) error

	// Send writes one frame to the channel.
	Send(data []byte) error

	// Close tears the channel down. Idempotent.
	Close() error

	SetMessageHandler(handler func(data []byte))
	SetErrorHandler(handler func(err error))
	SetCloseHandler(handler func())
}

// NewTransport builds the transport matching the descriptor's protocol. The
// descriptor's authentication is attached to HTTP-based transports; stdio
// processes authenticate through their environment instead.
func NewTransport(d domain.ServerDescriptor) (Transport, error) {
	switch d.Protocol {
	case domain.ProtocolStdio:
		return NewStdioTransport(d.Command, d.Args, d.Env), nil
	case domain.ProtocolSSE:
		return NewSSETransport(d.Endpoint, authHeader(d.Authentication)), nil
	case domain.ProtocolWebSocket:
		return NewWebSocketTransport(d.Endpoint, authHeader(d.Authentication)), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %q", d.Protocol)
	}
}

// authHeader renders the descriptor's authentication variant as HTTP headers.
func authHeader(auth domain.Authentication) http.Header {
	header := make(http.Header)
	switch auth.Type {
	case domain.AuthBearer:
		header.Set("Authorization", "Bearer "+auth.Token)
	case domain.AuthAPIKey:
		name := auth.Header
		if name == "" {
			name = domain.DefaultAPIKeyHeader
		}
		header.Set(name, auth.Token)
	case domain.AuthBasic:
		req := http.Request{Header: header}
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	return header
}
