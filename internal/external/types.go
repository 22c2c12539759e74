package external

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient is the interface every transport implements (spec.md §3
// "External-Server Descriptor"); it mirrors the client surface the MCP
// front-end adapter and the router need to federate calls through a
// back-end.
type MCPClient interface {
	Initialize(ctx context.Context) error
	Close() error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)
	GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*mcp.GetPromptResult, error)
	Ping(ctx context.Context) error
}

// TransportType enumerates the external-server transport variants (spec.md
// §3: "stdio | sse | http_stream | websocket").
type TransportType string

const (
	TransportStdio      TransportType = "stdio"
	TransportSSE        TransportType = "sse"
	TransportHTTPStream TransportType = "http_stream"
	TransportWebsocket  TransportType = "websocket"
)

// RestartPolicy bounds reconnect attempts (spec.md §4.2 "Reconnection uses
// exponential backoff with a jitter and a bounded retry count").
type RestartPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRestartPolicy mirrors the backoff defaults used across the
// corpus's retry helpers (initial 1s, doubling, capped at 30s).
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{MaxAttempts: 10, InitialInterval: time.Second, MaxInterval: 30 * time.Second}
}

// Descriptor configures one external server (spec.md §3 "External-Server
// Descriptor").
type Descriptor struct {
	Name      string
	Transport TransportType

	// stdio
	Command string
	Args    []string
	Env     map[string]string
	Cwd     string

	// sse | http_stream | websocket
	BaseURL string
	Auth    *HTTPAuth

	RestartPolicy       RestartPolicy
	RequestTimeout      time.Duration
	HealthCheckInterval time.Duration
	CapabilityRefresh   time.Duration
}

// HTTPAuth describes how a remote-transport connection authenticates.
type HTTPAuth struct {
	Type     string // bearer | apikey | basic
	Token    string
	Header   string
	Username string
	Password string
}

// Phase is the Connection state machine's current state (spec.md §4.2).
type Phase string

const (
	PhaseInitializing Phase = "Initializing"
	PhaseRunning       Phase = "Running"
	PhaseReconnecting  Phase = "Reconnecting"
	PhaseFailed        Phase = "Failed"
	PhaseStopped       Phase = "Stopped"
)

// CapabilitySet is a back-end's cached tools/resources/prompts, refreshed on
// entering Running and on the descriptor's CapabilityRefresh timer (spec.md
// §4.2 "Capability discovery"). listChanged notifications from the back-end
// do not trigger a refresh.
type CapabilitySet struct {
	Tools     []mcp.Tool
	Resources []mcp.Resource
	Prompts   []mcp.Prompt
	FetchedAt time.Time
}

// ConnectionSnapshot is the read-only view of a Connection's state handed to
// observers (spec.md §3: "Exclusively owned by the external-server manager;
// observers receive snapshots").
type ConnectionSnapshot struct {
	Name               string
	Phase              Phase
	LastActivity       time.Time
	ConsecutiveFailure int
	LastError          string
	Capabilities       CapabilitySet
}

// Connection is the runtime state for one Descriptor. The manager's worker
// goroutine for that descriptor drives it; Manager.Stop and Manager.CallTool
// also use it from other goroutines, and every method takes the
// connection's mutex. ReadSnapshot returns a copy for observers.
type Connection struct {
	descriptor Descriptor

	mu                 sync.RWMutex
	phase              Phase
	client             MCPClient
	lastActivity       time.Time
	consecutiveFailure int
	lastError          string
	capabilities       CapabilitySet

	pending *correlationTable
}

func newConnection(d Descriptor) *Connection {
	return &Connection{
		descriptor: d,
		phase:      PhaseInitializing,
		pending:    newCorrelationTable(),
	}
}

// ReadSnapshot returns an immutable copy of the connection's current state.
func (c *Connection) ReadSnapshot() ConnectionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ConnectionSnapshot{
		Name:               c.descriptor.Name,
		Phase:              c.phase,
		LastActivity:       c.lastActivity,
		ConsecutiveFailure: c.consecutiveFailure,
		LastError:          c.lastError,
		Capabilities:       c.capabilities,
	}
}

func (c *Connection) setPhase(phase Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == phase {
		return
	}
	c.phase = phase
	logging.Health(logging.HealthEvent{
		Server:    c.descriptor.Name,
		Phase:     string(phase),
		Attempt:   c.consecutiveFailure,
		LastError: c.lastError,
	})
}

func (c *Connection) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
	c.consecutiveFailure = 0
}

func (c *Connection) recordFailure(err error) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailure++
	c.lastError = err.Error()
	return c.consecutiveFailure
}

func (c *Connection) updateCapabilities(caps CapabilitySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capabilities = caps
}

func (c *Connection) getClient() MCPClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *Connection) setClient(client MCPClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = client
}
