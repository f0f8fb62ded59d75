package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aether-ai/mcpregd/internal/domain"
	apperr "github.com/aether-ai/mcpregd/internal/errors"
)

const (
	// DefaultRequestTimeout bounds a single request/response exchange. The
	// connection survives a timed-out request; only that request is rejected.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultConnectTimeout bounds transport establishment plus the initialize
	// handshake.
	DefaultConnectTimeout = 10 * time.Second
)

// connState is the client's connection lifecycle.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// ToolResult is the outcome of one tool invocation. Content is the server's
// content array, kept opaque; IsError marks a tool-level failure reported
// inside an otherwise successful response.
type ToolResult struct {
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

// NotificationHandler receives server-initiated notifications for one method.
type NotificationHandler func(params json.RawMessage)

// ClientOption configures optional Client behaviour.
type ClientOption func(*Client)

// WithRequestTimeout overrides the per-request deadline.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithConnectTimeout overrides the connect deadline.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithTransportFactory overrides how transports are built, for tests.
func WithTransportFactory(f func(domain.ServerDescriptor) (Transport, error)) ClientOption {
	return func(c *Client) {
		c.newTransport = f
	}
}

// Client speaks MCP over one transport to one server. Requests are correlated
// to responses by monotonically increasing id; each in-flight request holds a
// reply channel in the pending table until its response, its timeout, or the
// connection's death resolves it.
type Client struct {
	logger     hclog.Logger
	descriptor domain.ServerDescriptor

	requestTimeout time.Duration
	connectTimeout time.Duration
	newTransport   func(domain.ServerDescriptor) (Transport, error)

	nextID atomic.Int64
	state  atomic.Int32

	mu        sync.Mutex
	transport Transport
	pending   map[int64]chan *inboundMessage

	handlerMu sync.RWMutex
	handlers  map[string][]NotificationHandler

	serverInfo mcp.Implementation
}

// NewClient creates a client for the given descriptor. Connect must be called
// before any request.
func NewClient(logger hclog.Logger, d domain.ServerDescriptor, opts ...ClientOption) *Client {
	c := &Client{
		logger:         logger.Named("client").With("server", d.ID),
		descriptor:     d,
		requestTimeout: DefaultRequestTimeout,
		connectTimeout: DefaultConnectTimeout,
		newTransport:   NewTransport,
		pending:        make(map[int64]chan *inboundMessage),
		handlers:       make(map[string][]NotificationHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConnected reports whether the initialize handshake has completed and the
// transport is still up.
func (c *Client) IsConnected() bool {
	return connState(c.state.Load()) == stateConnected
}

// ServerInfo returns the implementation details the server reported during the
// initialize handshake. Zero value until connected.
func (c *Client) ServerInfo() mcp.Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Connect establishes the transport and performs the MCP initialize handshake.
// The whole sequence is bounded by the connect timeout.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(stateDisconnected), int32(stateConnecting)) {
		return fmt.Errorf("connect attempted in state %d", c.state.Load())
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	transport, err := c.newTransport(c.descriptor)
	if err != nil {
		c.state.Store(int32(stateDisconnected))
		return err
	}

	transport.SetMessageHandler(c.handleFrame)
	transport.SetErrorHandler(func(err error) {
		c.logger.Error("Transport error", "error", err)
	})
	transport.SetCloseHandler(c.handleClose)

	if err := transport.Start(ctx); err != nil {
		c.state.Store(int32(stateDisconnected))
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", apperr.ErrConnectTimeout, c.connectTimeout)
		}
		return fmt.Errorf("transport start failed: %w", err)
	}

	c.mu.Lock()
	c.transport = transport
	c.mu.Unlock()

	if err := c.initialize(ctx); err != nil {
		_ = transport.Close()
		c.mu.Lock()
		c.transport = nil
		c.mu.Unlock()
		c.state.Store(int32(stateDisconnected))
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", apperr.ErrConnectTimeout, c.connectTimeout)
		}
		return fmt.Errorf("initialize failed: %w", err)
	}

	c.state.Store(int32(stateConnected))
	c.logger.Debug("Connected", "protocol", c.descriptor.Protocol)

	return nil
}

// initialize performs the initialize request followed by the initialized
// notification, per the MCP handshake.
func (c *Client) initialize(ctx context.Context) error {
	params := struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    map[string]any     `json:"capabilities"`
		ClientInfo      mcp.Implementation `json:"clientInfo"`
	}{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		Capabilities:    map[string]any{},
		ClientInfo:      mcp.Implementation{Name: "mcpregd", Version: "1.0.0"},
	}

	var result struct {
		ProtocolVersion string             `json:"protocolVersion"`
		ServerInfo      mcp.Implementation `json:"serverInfo"`
	}
	if err := c.request(ctx, "initialize", params, &result); err != nil {
		return err
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	return c.notify("notifications/initialized", nil)
}

// Disconnect tears the connection down and rejects every in-flight request.
func (c *Client) Disconnect() error {
	c.state.Store(int32(stateDisconnected))

	c.mu.Lock()
	transport := c.transport
	c.transport = nil
	c.failPendingLocked()
	c.mu.Unlock()

	if transport == nil {
		return nil
	}
	return transport.Close()
}

// handleClose runs when the transport dies underneath us.
func (c *Client) handleClose() {
	if c.state.Swap(int32(stateDisconnected)) == int32(stateDisconnected) {
		return
	}

	c.logger.Warn("Connection closed by peer")

	c.mu.Lock()
	c.transport = nil
	c.failPendingLocked()
	c.mu.Unlock()
}

// failPendingLocked resolves every pending request with a closed channel; the
// waiters translate that into ErrConnectionClosed. Caller holds c.mu.
func (c *Client) failPendingLocked() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// handleFrame routes one inbound frame: responses resolve their pending entry,
// notifications fan out to registered handlers.
func (c *Client) handleFrame(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Discarding malformed frame", "error", err)
		return
	}

	if msg.ID != nil {
		c.mu.Lock()
		ch, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Response to a request that already timed out.
			c.logger.Debug("Discarding late response", "id", *msg.ID)
			return
		}
		ch <- &msg
		return
	}

	if msg.Method != "" {
		c.dispatchNotification(msg.Method, msg.Params)
	}
}

// OnNotification registers a handler for server-initiated notifications with
// the given method. Handlers run on the transport's read goroutine.
func (c *Client) OnNotification(method string, handler NotificationHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[method] = append(c.handlers[method], handler)
}

func (c *Client) dispatchNotification(method string, params json.RawMessage) {
	c.handlerMu.RLock()
	handlers := c.handlers[method]
	c.handlerMu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("Unhandled notification", "method", method)
		return
	}
	for _, h := range handlers {
		h(params)
	}
}

// request sends one request and decodes its result, bounded by the request
// timeout (or the context's earlier deadline).
func (c *Client) request(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan *inboundMessage, 1)

	c.mu.Lock()
	transport := c.transport
	if transport == nil {
		c.mu.Unlock()
		return apperr.ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		c.abandon(id)
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	if err := transport.Send(data); err != nil {
		c.abandon(id)
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			return apperr.ErrConnectionClosed
		}
		if msg.Error != nil {
			return msg.Error
		}
		if result != nil && msg.Result != nil {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		c.abandon(id)
		return fmt.Errorf("%w: %s after %s", apperr.ErrRequestTimeout, method, c.requestTimeout)
	case <-ctx.Done():
		c.abandon(id)
		return ctx.Err()
	}
}

// abandon removes a pending entry whose reply will never be consumed.
func (c *Client) abandon(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// notify sends a notification; no reply is expected.
func (c *Client) notify(method string, params any) error {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport == nil {
		return apperr.ErrNotConnected
	}

	data, err := json.Marshal(newNotification(method, params))
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", method, err)
	}
	return transport.Send(data)
}

// requireConnected gates request methods on the handshake having completed.
func (c *Client) requireConnected() error {
	if !c.IsConnected() {
		return apperr.ErrNotConnected
	}
	return nil
}

// Ping checks liveness of the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	return c.request(ctx, "ping", nil, nil)
}

// ListTools returns the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	var result struct {
		Tools []mcp.Tool `json:"tools"`
	}
	if err := c.request(ctx, "tools/list", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes one tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	params := struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}{Name: name, Arguments: args}

	var result ToolResult
	if err := c.request(ctx, "tools/call", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources returns the resources the server advertises.
func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	var result struct {
		Resources []mcp.Resource `json:"resources"`
	}
	if err := c.request(ctx, "resources/list", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ReadResource fetches one resource's contents, kept opaque.
func (c *Client) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	params := struct {
		URI string `json:"uri"`
	}{URI: uri}

	var result struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := c.request(ctx, "resources/read", params, &result); err != nil {
		return nil, err
	}
	return result.Contents, nil
}

// ListPrompts returns the prompts the server advertises.
func (c *Client) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	var result struct {
		Prompts []mcp.Prompt `json:"prompts"`
	}
	if err := c.request(ctx, "prompts/list", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt fetches one rendered prompt, kept opaque.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (json.RawMessage, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	params := struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}{Name: name, Arguments: args}

	var result struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := c.request(ctx, "prompts/get", params, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}
