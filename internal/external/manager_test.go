package external

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a scriptable MCPClient used to drive the manager's worker
// loop without dialing a real transport.
type fakeClient struct {
	initErr  error
	pingErr  error
	tools    []mcp.Tool
	closed   bool
	initHits int
	pingHits int

	// callToolBlocks makes CallTool wait for ctx to be done instead of
	// returning immediately, for exercising Manager.CallTool's
	// cancellation path.
	callToolBlocks bool
}

func (f *fakeClient) Initialize(ctx context.Context) error {
	f.initHits++
	return f.initErr
}
func (f *fakeClient) Close() error { f.closed = true; return nil }
func (f *fakeClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return f.tools, nil }
func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if f.callToolBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &mcp.CallToolResult{}, nil
}
func (f *fakeClient) ListResources(ctx context.Context) ([]mcp.Resource, error) { return nil, nil }
func (f *fakeClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{}, nil
}
func (f *fakeClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) { return nil, nil }
func (f *fakeClient) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{}, nil
}
func (f *fakeClient) Ping(ctx context.Context) error {
	f.pingHits++
	return f.pingErr
}

func TestBackoffDelay_GrowsAndCaps(t *testing.T) {
	policy := RestartPolicy{MaxAttempts: 10, InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}

	first := backoffDelay(policy, 0)
	later := backoffDelay(policy, 5)

	assert.LessOrEqual(t, first, policy.InitialInterval)
	assert.LessOrEqual(t, later, policy.MaxInterval)
}

func TestConnection_RecordFailureIncrementsAndStoresError(t *testing.T) {
	conn := newConnection(Descriptor{Name: "test"})

	n := conn.recordFailure(assertError("boom"))
	assert.Equal(t, 1, n)

	snap := conn.ReadSnapshot()
	assert.Equal(t, 1, snap.ConsecutiveFailure)
	assert.Equal(t, "boom", snap.LastError)
}

func TestConnection_RecordSuccessResetsFailureCount(t *testing.T) {
	conn := newConnection(Descriptor{Name: "test"})
	conn.recordFailure(assertError("boom"))
	conn.recordSuccess()

	snap := conn.ReadSnapshot()
	assert.Equal(t, 0, snap.ConsecutiveFailure)
}

func TestManager_ClientUnavailableBeforeRunning(t *testing.T) {
	m := NewManager()
	m.mu.Lock()
	m.connections["svc"] = newConnection(Descriptor{Name: "svc"})
	m.mu.Unlock()

	_, ok := m.Client("svc")
	assert.False(t, ok)
}

func TestManager_CallToolUnavailableWhenNotConnected(t *testing.T) {
	m := NewManager()
	_, err := m.CallTool(context.Background(), "svc", "tool", nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestManager_CallToolSucceedsWhenRunning(t *testing.T) {
	m := NewManager()
	conn := newConnection(Descriptor{Name: "svc"})
	conn.setPhase(PhaseRunning)
	conn.setClient(&fakeClient{})
	m.mu.Lock()
	m.connections["svc"] = conn
	m.mu.Unlock()

	result, err := m.CallTool(context.Background(), "svc", "tool", nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestManager_CallToolDiscardsResultAfterCancellation(t *testing.T) {
	m := NewManager()
	conn := newConnection(Descriptor{Name: "svc"})
	conn.setPhase(PhaseRunning)
	conn.setClient(&fakeClient{callToolBlocks: true})
	m.mu.Lock()
	m.connections["svc"] = conn
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.CallTool(ctx, "svc", "tool", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_SnapshotUnknownName(t *testing.T) {
	m := NewManager()
	_, ok := m.Snapshot("does-not-exist")
	assert.False(t, ok)
}

func TestManager_StopRemovesConnection(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newConnection(Descriptor{Name: "svc"})
	m.mu.Lock()
	m.connections["svc"] = conn
	m.cancels["svc"] = cancel
	m.mu.Unlock()

	m.Stop("svc")

	_, ok := m.Snapshot("svc")
	assert.False(t, ok)
	assert.Equal(t, PhaseStopped, conn.ReadSnapshot().Phase)
}

func TestNewTransportClient_UnknownTransportReturnsNil(t *testing.T) {
	client := newTransportClient(Descriptor{Transport: "carrier-pigeon"})
	require.Nil(t, client)
}

func TestNewTransportClient_EachVariantConstructs(t *testing.T) {
	assert.IsType(t, &StdioClient{}, newTransportClient(Descriptor{Transport: TransportStdio, Command: "echo"}))
	assert.IsType(t, &SSEClient{}, newTransportClient(Descriptor{Transport: TransportSSE, BaseURL: "http://x"}))
	assert.IsType(t, &HTTPStreamClient{}, newTransportClient(Descriptor{Transport: TransportHTTPStream, BaseURL: "http://x"}))
	assert.IsType(t, &WebsocketClient{}, newTransportClient(Descriptor{Transport: TransportWebsocket, BaseURL: "ws://x"}))
}

type simpleError string

func assertError(msg string) error { return simpleError(msg) }
func (e simpleError) Error() string { return string(e) }
