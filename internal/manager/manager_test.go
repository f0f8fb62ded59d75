package manager

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	apperr "github.com/aether-ai/mcpregd/internal/errors"
	"github.com/aether-ai/mcpregd/internal/events"
	"github.com/aether-ai/mcpregd/internal/protocol"
)

// stubRegistry serves Get from a fixed map; the manager needs nothing else
// from the registry contract here.
type stubRegistry struct {
	mu      sync.Mutex
	servers map[string]domain.Registration
}

func newStubRegistry(descriptors ...domain.ServerDescriptor) *stubRegistry {
	r := &stubRegistry{servers: make(map[string]domain.Registration)}
	for _, d := range descriptors {
		r.servers[d.ID] = domain.Registration{Server: d, RegisteredAt: time.Now().UTC()}
	}
	return r
}

func (r *stubRegistry) Get(id string) (domain.Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.servers[id]
	return reg, ok
}

func (r *stubRegistry) Register(domain.ServerDescriptor, string, string) (domain.ValidationResult, error) {
	return domain.Valid(), nil
}

func (r *stubRegistry) Update(string, domain.ServerDescriptor, string) (domain.ValidationResult, error) {
	return domain.Valid(), nil
}

func (r *stubRegistry) Unregister(string) bool                                 { return false }
func (r *stubRegistry) List(domain.ListOptions) ([]domain.Registration, int)   { return nil, 0 }
func (r *stubRegistry) Enable(string) bool                                     { return false }
func (r *stubRegistry) Disable(string) bool                                    { return false }
func (r *stubRegistry) Health(string) (domain.ServerHealth, bool)              { return domain.ServerHealth{}, false }
func (r *stubRegistry) HealthAll() []domain.ServerHealth                       { return nil }
func (r *stubRegistry) CheckNow(context.Context, string) bool                  { return false }

// fakeClient is a canned protocol client.
type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	callErr    error
	callResult *protocol.ToolResult
	tools      []mcp.Tool
	toolsErr   error
	calls      int
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeClient) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) ServerInfo() mcp.Implementation {
	return mcp.Implementation{Name: "fake", Version: "0.1.0"}
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) ListTools(context.Context) ([]mcp.Tool, error) {
	return f.tools, f.toolsErr
}

func (f *fakeClient) CallTool(context.Context, string, map[string]any) (*protocol.ToolResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.callResult != nil {
		return f.callResult, nil
	}
	return &protocol.ToolResult{Content: json.RawMessage(`[{"type":"text","text":"ok"}]`)}, nil
}

func (f *fakeClient) ListResources(context.Context) ([]mcp.Resource, error) { return nil, nil }

func (f *fakeClient) ReadResource(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeClient) ListPrompts(context.Context) ([]mcp.Prompt, error) { return nil, nil }

func (f *fakeClient) GetPrompt(context.Context, string, map[string]string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func descriptor(id string) domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:       id,
		Name:     id,
		Endpoint: "stdio://local",
		Protocol: domain.ProtocolStdio,
		Command:  "fake",
		Enabled:  true,
	}
}

// newTestManager wires a manager whose factory serves clients from the map.
func newTestManager(t *testing.T, registry *stubRegistry, clients map[string]*fakeClient, opts ...Option) *Manager {
	t.Helper()

	logger := hclog.NewNullLogger()
	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)

	opts = append([]Option{
		WithClientFactory(func(d domain.ServerDescriptor) contracts.ProtocolClient {
			if c, ok := clients[d.ID]; ok {
				return c
			}
			return &fakeClient{}
		}),
	}, opts...)

	return New(logger, registry, bus, opts...)
}

func TestManager_ExecuteTool(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("srv"))
	client := &fakeClient{}
	m := newTestManager(t, registry, map[string]*fakeClient{"srv": client})

	require.NoError(t, m.Connect(context.Background(), "srv"))

	result, err := m.ExecuteTool(context.Background(), "srv", "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	history := m.History("srv", 0)
	require.Len(t, history, 1)
	require.Equal(t, "echo", history[0].ToolName)
	require.Empty(t, history[0].Error)
}

func TestManager_ExecuteToolUnknownServer(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newStubRegistry(), nil)

	_, err := m.ExecuteTool(context.Background(), "ghost", "echo", nil)
	require.ErrorIs(t, err, apperr.ErrServerNotFound)
	require.Empty(t, m.History("", 0), "failed lookups must not pollute history")
}

func TestManager_ExecuteToolDisconnectedServer(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("srv"))
	m := newTestManager(t, registry, map[string]*fakeClient{"srv": {}})

	_, err := m.ExecuteTool(context.Background(), "srv", "echo", nil)
	require.ErrorIs(t, err, apperr.ErrServerNotConnected)
	require.Empty(t, m.History("", 0))
}

func TestManager_ExecuteToolFailureIsRecordedAndWrapped(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("srv"))
	client := &fakeClient{callErr: errors.New("boom")}
	m := newTestManager(t, registry, map[string]*fakeClient{"srv": client})
	require.NoError(t, m.Connect(context.Background(), "srv"))

	sub := m.bus.Subscribe(events.TypeToolError)
	defer sub.Close()

	_, err := m.ExecuteTool(context.Background(), "srv", "echo", nil)
	require.ErrorIs(t, err, apperr.ErrToolCallFailed)

	history := m.History("srv", 0)
	require.Len(t, history, 1)
	require.Contains(t, history[0].Error, "boom")

	select {
	case evt := <-sub.Events():
		require.Equal(t, events.TypeToolError, evt.Type)
		require.Equal(t, "srv", evt.ServerID)
	case <-time.After(time.Second):
		t.Fatal("expected a tool.error event")
	}
}

func TestManager_ConnectFailureRecordsLastError(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("srv"))
	client := &fakeClient{connectErr: errors.New("refused")}
	m := newTestManager(t, registry, map[string]*fakeClient{"srv": client})

	require.Error(t, m.Connect(context.Background(), "srv"))

	statuses := m.Connections()
	require.Len(t, statuses, 1)
	require.False(t, statuses[0].Connected)
	require.Contains(t, statuses[0].LastError, "refused")
}

func TestManager_AllToolsSkipsFailingServers(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("good"), descriptor("bad"))
	clients := map[string]*fakeClient{
		"good": {tools: []mcp.Tool{{Name: "echo"}}},
		"bad":  {toolsErr: errors.New("unreachable")},
	}
	m := newTestManager(t, registry, clients)
	require.NoError(t, m.Connect(context.Background(), "good"))
	require.NoError(t, m.Connect(context.Background(), "bad"))

	all := m.AllTools(context.Background())
	require.Len(t, all, 1)
	require.Equal(t, "good", all[0].ServerID)
	require.Len(t, all[0].Tools, 1)
}

func TestManager_StartConnectsOnRegistration(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("srv"))
	client := &fakeClient{}
	m := newTestManager(t, registry, map[string]*fakeClient{"srv": client})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	m.bus.Publish(events.TypeServerRegistered, "srv", nil)

	require.Eventually(t, func() bool {
		return client.IsConnected()
	}, time.Second, 5*time.Millisecond)
}

func TestManager_UnregisterEventDropsConnection(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("srv"))
	client := &fakeClient{}
	m := newTestManager(t, registry, map[string]*fakeClient{"srv": client})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.NoError(t, m.Connect(ctx, "srv"))
	m.bus.Publish(events.TypeServerUnregistered, "srv", nil)

	require.Eventually(t, func() bool {
		return len(m.Connections()) == 0 && !client.IsConnected()
	}, time.Second, 5*time.Millisecond)
}

func TestManager_StopDisconnectsEverything(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry(descriptor("a"), descriptor("b"))
	clients := map[string]*fakeClient{"a": {}, "b": {}}
	m := newTestManager(t, registry, clients)
	require.NoError(t, m.Connect(context.Background(), "a"))
	require.NoError(t, m.Connect(context.Background(), "b"))

	m.Stop()

	require.Empty(t, m.Connections())
	require.False(t, clients["a"].IsConnected())
	require.False(t, clients["b"].IsConnected())
}
