// Package manager maintains protocol client connections to registered servers
// and exposes tool, resource, and prompt operations across them. It keeps its
// client pool in sync with the registry by consuming lifecycle events, and
// records every tool invocation in a bounded history.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	apperr "github.com/aether-ai/mcpregd/internal/errors"
	"github.com/aether-ai/mcpregd/internal/events"
	"github.com/aether-ai/mcpregd/internal/protocol"
)

// listConcurrency caps parallel fan-out over server connections.
const listConcurrency = 8

// connection is one server's client plus its connection bookkeeping.
type connection struct {
	client      contracts.ProtocolClient
	connectedAt time.Time
	lastError   string
}

// ConnectionStatus is the externally visible state of one server connection.
type ConnectionStatus struct {
	ServerID    string             `json:"serverId"`
	Connected   bool               `json:"connected"`
	ConnectedAt time.Time          `json:"connectedAt,omitzero"`
	ServerInfo  mcp.Implementation `json:"serverInfo,omitzero"`
	LastError   string             `json:"lastError,omitempty"`
}

// ServerTools pairs a server id with the tools it advertises.
type ServerTools struct {
	ServerID string     `json:"serverId"`
	Tools    []mcp.Tool `json:"tools"`
}

// ServerResources pairs a server id with the resources it advertises.
type ServerResources struct {
	ServerID  string         `json:"serverId"`
	Resources []mcp.Resource `json:"resources"`
}

// ServerPrompts pairs a server id with the prompts it advertises.
type ServerPrompts struct {
	ServerID string       `json:"serverId"`
	Prompts  []mcp.Prompt `json:"prompts"`
}

// Option configures optional Manager behaviour.
type Option func(*Manager)

// WithHistoryCapacity overrides the execution history size.
func WithHistoryCapacity(capacity int) Option {
	return func(m *Manager) {
		m.history = NewHistory(capacity)
	}
}

// WithClientFactory overrides how protocol clients are built, for tests.
func WithClientFactory(f contracts.ClientFactory) Option {
	return func(m *Manager) {
		m.newClient = f
	}
}

// Manager owns one protocol client per registered, enabled server.
type Manager struct {
	logger   hclog.Logger
	registry contracts.ServerRegistry
	bus      *events.Bus
	history  *History

	newClient contracts.ClientFactory

	mu    sync.RWMutex
	conns map[string]*connection

	sub  *events.Subscription
	done chan struct{}
}

// New creates a manager over the registry. Call Start to begin tracking
// registry changes.
func New(logger hclog.Logger, registry contracts.ServerRegistry, bus *events.Bus, opts ...Option) *Manager {
	m := &Manager{
		logger:   logger.Named("manager"),
		registry: registry,
		bus:      bus,
		history:  NewHistory(DefaultHistoryCapacity),
		conns:    make(map[string]*connection),
		done:     make(chan struct{}),
	}
	m.newClient = func(d domain.ServerDescriptor) contracts.ProtocolClient {
		return protocol.NewClient(logger, d)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to registry lifecycle events and keeps the client pool in
// sync: registrations gain a connection attempt, updates reconnect, removals
// disconnect.
func (m *Manager) Start(ctx context.Context) {
	m.sub = m.bus.Subscribe(
		events.TypeServerRegistered,
		events.TypeServerUpdated,
		events.TypeServerUnregistered,
	)

	go func() {
		defer close(m.done)
		for {
			select {
			case evt, ok := <-m.sub.Events():
				if !ok {
					return
				}
				m.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) handleEvent(ctx context.Context, evt events.Event) {
	switch evt.Type {
	case events.TypeServerRegistered:
		m.syncServer(ctx, evt.ServerID)
	case events.TypeServerUpdated:
		m.dropConnection(evt.ServerID)
		m.syncServer(ctx, evt.ServerID)
	case events.TypeServerUnregistered:
		m.dropConnection(evt.ServerID)
	}
}

// syncServer reconciles one server's connection with its current registration.
// Connection failures are recorded, not propagated; the next explicit call or
// update retries.
func (m *Manager) syncServer(ctx context.Context, id string) {
	reg, ok := m.registry.Get(id)
	if !ok || !reg.Server.Enabled {
		return
	}

	if err := m.Connect(ctx, id); err != nil {
		m.logger.Warn("Auto-connect failed", "server", id, "error", err)
	}
}

// Connect establishes (or re-establishes) the protocol connection for one
// registered server.
func (m *Manager) Connect(ctx context.Context, id string) error {
	reg, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", apperr.ErrServerNotFound, id)
	}

	m.dropConnection(id)

	client := m.newClient(reg.Server)
	conn := &connection{client: client}

	if err := client.Connect(ctx); err != nil {
		conn.lastError = err.Error()
		m.mu.Lock()
		m.conns[id] = conn
		m.mu.Unlock()
		return fmt.Errorf("failed to connect to %s: %w", id, err)
	}

	conn.connectedAt = time.Now().UTC()
	m.mu.Lock()
	m.conns[id] = conn
	m.mu.Unlock()

	m.logger.Info("Connected to server", "server", id, "name", client.ServerInfo().Name)
	return nil
}

// Disconnect tears down one server's connection. Unknown ids are a no-op.
func (m *Manager) Disconnect(id string) {
	m.dropConnection(id)
}

func (m *Manager) dropConnection(id string) {
	m.mu.Lock()
	conn, ok := m.conns[id]
	if ok {
		delete(m.conns, id)
	}
	m.mu.Unlock()

	if ok && conn.client.IsConnected() {
		if err := conn.client.Disconnect(); err != nil {
			m.logger.Warn("Disconnect failed", "server", id, "error", err)
		}
	}
}

// Stop closes the event subscription and every connection.
func (m *Manager) Stop() {
	if m.sub != nil {
		m.sub.Close()
		<-m.done
	}

	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*connection)
	m.mu.Unlock()

	for id, conn := range conns {
		if conn.client.IsConnected() {
			if err := conn.client.Disconnect(); err != nil {
				m.logger.Warn("Disconnect failed during shutdown", "server", id, "error", err)
			}
		}
	}
}

// Connections returns the connection status of every tracked server, ordered
// by id.
func (m *Manager) Connections() []ConnectionStatus {
	m.mu.RLock()
	statuses := make([]ConnectionStatus, 0, len(m.conns))
	for id, conn := range m.conns {
		status := ConnectionStatus{
			ServerID:  id,
			Connected: conn.client.IsConnected(),
			LastError: conn.lastError,
		}
		if status.Connected {
			status.ConnectedAt = conn.connectedAt
			status.ServerInfo = conn.client.ServerInfo()
		}
		statuses = append(statuses, status)
	}
	m.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ServerID < statuses[j].ServerID
	})
	return statuses
}

// connectedClient resolves a server id to its live client, distinguishing an
// unknown server from a known-but-disconnected one.
func (m *Manager) connectedClient(id string) (contracts.ProtocolClient, error) {
	if _, ok := m.registry.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotFound, id)
	}

	m.mu.RLock()
	conn, ok := m.conns[id]
	m.mu.RUnlock()

	if !ok || !conn.client.IsConnected() {
		return nil, fmt.Errorf("%w: %s", apperr.ErrServerNotConnected, id)
	}
	return conn.client, nil
}

// ExecuteTool invokes one tool on one server, records the attempt in the
// history, and publishes a tool.executed or tool.error event. Unknown and
// disconnected servers fail fast without a history entry.
func (m *Manager) ExecuteTool(ctx context.Context, serverID, toolName string, args map[string]any) (*protocol.ToolResult, error) {
	client, err := m.connectedClient(serverID)
	if err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	result, err := client.CallTool(ctx, toolName, args)
	elapsed := time.Since(started)

	execution := domain.ToolExecution{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		ToolName:  toolName,
		Arguments: args,
		Timestamp: started,
		Duration:  elapsed,
	}

	if err != nil {
		execution.Error = err.Error()
		m.history.Append(execution)
		m.bus.Publish(events.TypeToolError, serverID, events.ToolExecuted{
			ToolName: toolName,
			Duration: elapsed,
			Error:    err.Error(),
		})
		m.logger.Error("Tool execution failed", "server", serverID, "tool", toolName, "error", err)
		return nil, fmt.Errorf("%w: %s on %s: %w", apperr.ErrToolCallFailed, toolName, serverID, err)
	}

	execution.Result = result.Content
	if result.IsError {
		execution.Error = "tool reported an error"
	}
	m.history.Append(execution)
	m.bus.Publish(events.TypeToolExecuted, serverID, events.ToolExecuted{
		ToolName: toolName,
		Duration: elapsed,
	})
	m.logger.Debug("Tool executed", "server", serverID, "tool", toolName, "duration", elapsed)

	return result, nil
}

// History returns recorded executions newest-first, optionally filtered by
// server id and truncated to limit.
func (m *Manager) History(serverID string, limit int) []domain.ToolExecution {
	return m.history.List(serverID, limit)
}

// ListTools lists the tools one connected server advertises.
func (m *Manager) ListTools(ctx context.Context, serverID string) ([]mcp.Tool, error) {
	client, err := m.connectedClient(serverID)
	if err != nil {
		return nil, err
	}
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrToolListFailed, serverID, err)
	}
	return tools, nil
}

// AllTools aggregates tools across every connected server. Servers that fail
// to answer are skipped with a warning rather than failing the aggregate.
func (m *Manager) AllTools(ctx context.Context) []ServerTools {
	results := fanOut(ctx, m, func(ctx context.Context, id string, client contracts.ProtocolClient) (ServerTools, error) {
		tools, err := client.ListTools(ctx)
		if err != nil {
			return ServerTools{}, err
		}
		return ServerTools{ServerID: id, Tools: tools}, nil
	})

	sort.Slice(results, func(i, j int) bool { return results[i].ServerID < results[j].ServerID })
	return results
}

// AllResources aggregates resources across every connected server, skipping
// servers that fail to answer.
func (m *Manager) AllResources(ctx context.Context) []ServerResources {
	results := fanOut(ctx, m, func(ctx context.Context, id string, client contracts.ProtocolClient) (ServerResources, error) {
		resources, err := client.ListResources(ctx)
		if err != nil {
			return ServerResources{}, err
		}
		return ServerResources{ServerID: id, Resources: resources}, nil
	})

	sort.Slice(results, func(i, j int) bool { return results[i].ServerID < results[j].ServerID })
	return results
}

// AllPrompts aggregates prompts across every connected server, skipping
// servers that fail to answer.
func (m *Manager) AllPrompts(ctx context.Context) []ServerPrompts {
	results := fanOut(ctx, m, func(ctx context.Context, id string, client contracts.ProtocolClient) (ServerPrompts, error) {
		prompts, err := client.ListPrompts(ctx)
		if err != nil {
			return ServerPrompts{}, err
		}
		return ServerPrompts{ServerID: id, Prompts: prompts}, nil
	})

	sort.Slice(results, func(i, j int) bool { return results[i].ServerID < results[j].ServerID })
	return results
}

// ReadResource fetches one resource from one connected server.
func (m *Manager) ReadResource(ctx context.Context, serverID, uri string) (json.RawMessage, error) {
	client, err := m.connectedClient(serverID)
	if err != nil {
		return nil, err
	}
	return client.ReadResource(ctx, uri)
}

// GetPrompt fetches one rendered prompt from one connected server.
func (m *Manager) GetPrompt(ctx context.Context, serverID, name string, args map[string]string) (json.RawMessage, error) {
	client, err := m.connectedClient(serverID)
	if err != nil {
		return nil, err
	}
	return client.GetPrompt(ctx, name, args)
}

// Ping checks one connected server's liveness at the protocol level.
func (m *Manager) Ping(ctx context.Context, serverID string) error {
	client, err := m.connectedClient(serverID)
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

// fanOut runs one query per live connection with bounded concurrency,
// collecting the successes and logging the failures.
func fanOut[T any](ctx context.Context, m *Manager, query func(ctx context.Context, id string, client contracts.ProtocolClient) (T, error)) []T {
	m.mu.RLock()
	live := make(map[string]contracts.ProtocolClient, len(m.conns))
	for id, conn := range m.conns {
		if conn.client.IsConnected() {
			live[id] = conn.client
		}
	}
	m.mu.RUnlock()

	var (
		resultMu sync.Mutex
		results  = make([]T, 0, len(live))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)

	for id, client := range live {
		g.Go(func() error {
			value, err := query(ctx, id, client)
			if err != nil {
				m.logger.Warn("Skipping unresponsive server in aggregate listing", "server", id, "error", err)
				return nil
			}
			resultMu.Lock()
			results = append(results, value)
			resultMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
