package external

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/magictunnel/internal/metrics"
	"github.com/giantswarm/magictunnel/pkg/logging"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrBackendUnavailable is returned by CallTool when name has no connection,
// or its connection is not currently in the Running phase (spec.md §4.2
// "ErrBackendUnavailable when Running is not the current phase").
var ErrBackendUnavailable = errors.New("backend connection is not available")

// unhealthyThreshold is the number of consecutive failed pings before a
// Running connection is pulled back into Reconnecting (spec.md §4.2
// "three consecutive failed pings demote a connection to Reconnecting").
const unhealthyThreshold = 3

// Manager owns the lifecycle of every external-server Connection: dialing
// the configured transport, running its Initializing → Running →
// Reconnecting → Failed/Stopped state machine, periodic health pings,
// and capability refresh (spec.md §4.2 "External-Server Manager").
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	cancels     map[string]context.CancelFunc

	wg sync.WaitGroup

	metrics *metrics.ConnectionMetrics
}

func NewManager() *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// SetMetrics attaches a ConnectionMetrics sink; a nil sink (the default) is
// a no-op, so wiring it is optional.
func (m *Manager) SetMetrics(cm *metrics.ConnectionMetrics) {
	m.metrics = cm
}

// Start launches one worker goroutine per descriptor. Calling Start again
// with a descriptor whose Name already has a running worker is a no-op for
// that name; callers that need to replace a descriptor should Stop it first.
func (m *Manager) Start(ctx context.Context, descriptors []Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range descriptors {
		if _, exists := m.connections[d.Name]; exists {
			continue
		}
		conn := newConnection(d)
		workerCtx, cancel := context.WithCancel(ctx)
		m.connections[d.Name] = conn
		m.cancels[d.Name] = cancel

		m.wg.Add(1)
		go m.runWorker(workerCtx, conn)
	}
}

// Stop cancels the worker for name, closes its client, and removes it from
// the manager. A no-op if name is not known.
func (m *Manager) Stop(name string) {
	m.mu.Lock()
	cancel, ok := m.cancels[name]
	conn := m.connections[name]
	if ok {
		delete(m.cancels, name)
		delete(m.connections, name)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	cancel()
	if conn != nil {
		conn.setPhase(PhaseStopped)
		if client := conn.getClient(); client != nil {
			_ = client.Close()
		}
	}
}

// StopAll cancels every worker and waits for them to exit.
func (m *Manager) StopAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.Stop(name)
	}
	m.wg.Wait()
}

// Snapshot returns the current ConnectionSnapshot for name, if known.
func (m *Manager) Snapshot(name string) (ConnectionSnapshot, bool) {
	m.mu.RLock()
	conn, ok := m.connections[name]
	m.mu.RUnlock()
	if !ok {
		return ConnectionSnapshot{}, false
	}
	return conn.ReadSnapshot(), true
}

// Snapshots returns every known connection's current state.
func (m *Manager) Snapshots() []ConnectionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ConnectionSnapshot, 0, len(m.connections))
	for _, conn := range m.connections {
		out = append(out, conn.ReadSnapshot())
	}
	return out
}

// Client returns the live MCPClient for a Running connection, for the
// router to dispatch a tools/call through, or false if the backend is not
// currently connected (spec.md §4.2 "ErrBackendUnavailable when Running is
// not the current phase").
func (m *Manager) Client(name string) (MCPClient, bool) {
	m.mu.RLock()
	conn, ok := m.connections[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if conn.ReadSnapshot().Phase != PhaseRunning {
		return nil, false
	}
	client := conn.getClient()
	return client, client != nil
}

// CallTool dispatches a tools/call to the named connection's client,
// tracking the request through the connection's correlation table so a
// completion that lands after the caller's ctx was already cancelled is
// recognised and discarded instead of returned as if it had succeeded
// (spec.md §4.2 "Correlation", "Cancellation"). This is a manager-level
// concern distinct from each transport's own wire-level response matching;
// it governs whether a result the transport already matched is still worth
// handing back to the caller.
func (m *Manager) CallTool(ctx context.Context, name, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	m.mu.RLock()
	conn, ok := m.connections[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrBackendUnavailable
	}
	if conn.ReadSnapshot().Phase != PhaseRunning {
		return nil, ErrBackendUnavailable
	}
	client := conn.getClient()
	if client == nil {
		return nil, ErrBackendUnavailable
	}

	id := conn.pending.allocate()
	defer conn.pending.forget(id)

	type callOutcome struct {
		result *mcp.CallToolResult
		err    error
	}
	done := make(chan callOutcome, 1)
	go func() {
		result, err := client.CallTool(ctx, toolName, args)
		done <- callOutcome{result, err}
	}()

	select {
	case <-ctx.Done():
		conn.pending.cancel(id)
		return nil, ctx.Err()
	case outcome := <-done:
		if conn.pending.isCancelled(id) {
			logging.Debug("ExternalManager", "discarding late completion for cancelled call %s on %s", id, name)
			return nil, ctx.Err()
		}
		return outcome.result, outcome.err
	}
}

// runWorker drives one Connection through its full lifecycle until ctx is
// cancelled. On a connection error it demotes the connection to
// Reconnecting and retries with backoff; once the restart policy's attempts
// are exhausted it returns and leaves the connection in Failed.
func (m *Manager) runWorker(ctx context.Context, conn *Connection) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil {
			conn.setPhase(PhaseStopped)
			return
		}

		if err := m.connect(ctx, conn); err != nil {
			if !m.waitForRetry(ctx, conn) {
				if ctx.Err() != nil {
					conn.setPhase(PhaseStopped)
				}
				return
			}
			continue
		}

		conn.setPhase(PhaseRunning)
		logging.Info("ExternalManager", "connection %s is now Running", conn.descriptor.Name)
		m.refreshCapabilities(ctx, conn)

		// healthLoop blocks until the connection is judged unhealthy or ctx
		// is cancelled, then returns so the outer loop can reconnect.
		m.healthLoop(ctx, conn)

		if ctx.Err() != nil {
			conn.setPhase(PhaseStopped)
			if client := conn.getClient(); client != nil {
				_ = client.Close()
			}
			return
		}

		conn.setPhase(PhaseReconnecting)
		if client := conn.getClient(); client != nil {
			_ = client.Close()
			conn.setClient(nil)
		}
	}
}

// connect builds the transport client for conn's descriptor and runs its MCP
// handshake.
func (m *Manager) connect(ctx context.Context, conn *Connection) error {
	conn.setPhase(PhaseInitializing)
	m.metrics.RecordConnectAttempt(conn.descriptor.Name)

	client := newTransportClient(conn.descriptor)
	if client == nil {
		err := fmt.Errorf("unsupported transport %q for connection %s", conn.descriptor.Transport, conn.descriptor.Name)
		conn.recordFailure(err)
		m.metrics.RecordConnectFailure(conn.descriptor.Name, err)
		return err
	}

	initCtx := ctx
	if conn.descriptor.RequestTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, conn.descriptor.RequestTimeout)
		defer cancel()
	}

	if err := client.Initialize(initCtx); err != nil {
		failures := conn.recordFailure(err)
		m.metrics.RecordConnectFailure(conn.descriptor.Name, err)
		logging.Warn("ExternalManager", "connection %s failed to initialize (attempt #%d): %v",
			conn.descriptor.Name, failures, err)
		return err
	}

	conn.setClient(client)
	conn.recordSuccess()
	m.metrics.RecordConnectSuccess(conn.descriptor.Name)
	return nil
}

// waitForRetry blocks for the descriptor's backoff interval before the next
// connect attempt, returning false once MaxAttempts is exhausted or ctx is
// cancelled (spec.md §4.2 "Reconnection uses exponential backoff with a
// jitter and a bounded retry count").
func (m *Manager) waitForRetry(ctx context.Context, conn *Connection) bool {
	policy := conn.descriptor.RestartPolicy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRestartPolicy()
	}

	snapshot := conn.ReadSnapshot()
	if policy.MaxAttempts > 0 && snapshot.ConsecutiveFailure >= policy.MaxAttempts {
		conn.setPhase(PhaseFailed)
		lastErr := snapshot.LastError
		if lastErr == "" {
			lastErr = "unknown error"
		}
		logging.Error("ExternalManager", fmt.Errorf("%s", lastErr), "connection %s gave up after %d attempts",
			conn.descriptor.Name, snapshot.ConsecutiveFailure)
		return false
	}

	conn.setPhase(PhaseReconnecting)
	m.metrics.RecordRestart(conn.descriptor.Name)
	delay := backoffDelay(policy, snapshot.ConsecutiveFailure)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// backoffDelay computes the jittered exponential interval for the given
// number of failures so far, using cenkalti/backoff/v5's ExponentialBackOff
// in place of hand-rolled backoff arithmetic.
func backoffDelay(policy RestartPolicy, failures int) time.Duration {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     policy.InitialInterval,
		RandomizationFactor: 0.3,
		Multiplier:          2,
		MaxInterval:         policy.MaxInterval,
	}
	eb.Reset()

	delay := policy.InitialInterval
	for i := 0; i < failures; i++ {
		next, err := eb.NextBackOff()
		if err != nil {
			break
		}
		delay = next
	}
	if delay > policy.MaxInterval {
		delay = policy.MaxInterval
	}
	return delay
}

// healthLoop pings the connection on HealthCheckInterval and refreshes
// capabilities on CapabilityRefresh until the health ticker finds the
// connection unhealthy (unhealthyThreshold consecutive failed pings, or no
// client), or ctx is cancelled.
func (m *Manager) healthLoop(ctx context.Context, conn *Connection) {
	healthInterval := conn.descriptor.HealthCheckInterval
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}
	capInterval := conn.descriptor.CapabilityRefresh
	if capInterval <= 0 {
		capInterval = 5 * time.Minute
	}

	healthTicker := time.NewTicker(healthInterval)
	defer healthTicker.Stop()
	capTicker := time.NewTicker(capInterval)
	defer capTicker.Stop()

	consecutiveUnhealthy := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-healthTicker.C:
			client := conn.getClient()
			if client == nil {
				return
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := client.Ping(pingCtx)
			cancel()
			if err != nil {
				consecutiveUnhealthy++
				logging.Warn("ExternalManager", "health check %d/%d failed for %s: %v",
					consecutiveUnhealthy, unhealthyThreshold, conn.descriptor.Name, err)
				m.metrics.RecordHealthCheckFailure(conn.descriptor.Name, err)
				if consecutiveUnhealthy >= unhealthyThreshold {
					conn.recordFailure(err)
					return
				}
				continue
			}
			consecutiveUnhealthy = 0
			conn.recordSuccess()
		case <-capTicker.C:
			m.refreshCapabilities(ctx, conn)
		}
	}
}

// refreshCapabilities re-fetches tools/resources/prompts for a Running
// connection (spec.md §4.2 "Capability discovery"). A failure here is
// logged but does not itself demote the connection; the health ticker owns
// that decision.
func (m *Manager) refreshCapabilities(ctx context.Context, conn *Connection) {
	client := conn.getClient()
	if client == nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	tools, err := client.ListTools(fetchCtx)
	if err != nil {
		logging.Warn("ExternalManager", "capability refresh failed to list tools for %s: %v", conn.descriptor.Name, err)
		return
	}
	resources, err := client.ListResources(fetchCtx)
	if err != nil {
		logging.Debug("ExternalManager", "server %s does not support resources/list: %v", conn.descriptor.Name, err)
	}
	prompts, err := client.ListPrompts(fetchCtx)
	if err != nil {
		logging.Debug("ExternalManager", "server %s does not support prompts/list: %v", conn.descriptor.Name, err)
	}

	conn.updateCapabilities(CapabilitySet{
		Tools:     tools,
		Resources: resources,
		Prompts:   prompts,
		FetchedAt: time.Now(),
	})
}

// newTransportClient builds the MCPClient implementation for a descriptor's
// transport variant (spec.md §3).
func newTransportClient(d Descriptor) MCPClient {
	switch d.Transport {
	case TransportStdio:
		return NewStdioClient(d.Command, d.Args, d.Env)
	case TransportSSE:
		return NewSSEClient(d.BaseURL, d.Auth)
	case TransportHTTPStream:
		return NewHTTPStreamClient(d.BaseURL, d.Auth)
	case TransportWebsocket:
		return NewWebsocketClient(d.BaseURL, d.Auth)
	default:
		return nil
	}
}
