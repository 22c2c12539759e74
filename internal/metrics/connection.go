package metrics

import (
	"sync"
	"time"

	"github.com/giantswarm/magictunnel/pkg/logging"
)

// ConnectionMetrics tracks connect/disconnect/health-check events per
// external server (spec.md §4.2 lifecycle), the way AuthMetrics tracks
// login/logout events per backend.
type ConnectionMetrics struct {
	mu sync.RWMutex

	perServer map[string]*connectionServerMetrics

	totalConnectAttempts int64
	totalConnectSuccess  int64
	totalConnectFailure  int64
	totalHealthFailures  int64
	totalRestarts        int64
}

type connectionServerMetrics struct {
	Name             string
	ConnectAttempts  int64
	ConnectSuccesses int64
	ConnectFailures  int64
	HealthFailures   int64
	Restarts         int64
	LastConnectedAt  time.Time
	LastFailureAt    time.Time
	LastError        string
}

func NewConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{perServer: make(map[string]*connectionServerMetrics)}
}

func (m *ConnectionMetrics) getOrCreate(name string) *connectionServerMetrics {
	if metrics, ok := m.perServer[name]; ok {
		return metrics
	}
	metrics := &connectionServerMetrics{Name: name}
	m.perServer[name] = metrics
	return metrics
}

// RecordConnectAttempt records an attempt to dial or spawn a backend. A nil
// receiver is a no-op, so callers may wire metrics optionally.
func (m *ConnectionMetrics) RecordConnectAttempt(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(name)
	metrics.ConnectAttempts++
	m.totalConnectAttempts++
}

// RecordConnectSuccess records that a backend reached Running.
func (m *ConnectionMetrics) RecordConnectSuccess(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(name)
	metrics.ConnectSuccesses++
	metrics.LastConnectedAt = time.Now()
	m.totalConnectSuccess++

	logging.Info("Metrics", "backend %s connected (successes: %d)", name, metrics.ConnectSuccesses)
}

// RecordConnectFailure records a failed connect/spawn attempt.
func (m *ConnectionMetrics) RecordConnectFailure(name string, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(name)
	metrics.ConnectFailures++
	metrics.LastFailureAt = time.Now()
	if err != nil {
		metrics.LastError = err.Error()
	}
	m.totalConnectFailure++

	logging.Warn("Metrics", "backend %s connect failure: %v (failures: %d)", name, err, metrics.ConnectFailures)
}

// RecordHealthCheckFailure records a failed health ping against a Running
// backend (spec.md §4.2 "health check").
func (m *ConnectionMetrics) RecordHealthCheckFailure(name string, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(name)
	metrics.HealthFailures++
	metrics.LastFailureAt = time.Now()
	if err != nil {
		metrics.LastError = err.Error()
	}
	m.totalHealthFailures++
}

// RecordRestart records the restart policy firing for a backend.
func (m *ConnectionMetrics) RecordRestart(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(name)
	metrics.Restarts++
	m.totalRestarts++

	logging.Info("Metrics", "backend %s restarted (total restarts: %d)", name, metrics.Restarts)
}

// ConnectionSummary is a read-only snapshot for a status endpoint.
type ConnectionSummary struct {
	TotalConnectAttempts int64                `json:"total_connect_attempts"`
	TotalConnectSuccess  int64                `json:"total_connect_successes"`
	TotalConnectFailure  int64                `json:"total_connect_failures"`
	TotalHealthFailures  int64                `json:"total_health_failures"`
	TotalRestarts        int64                `json:"total_restarts"`
	PerServer            []ConnectionServerView `json:"per_server"`
}

type ConnectionServerView struct {
	Name             string    `json:"name"`
	ConnectAttempts  int64     `json:"connect_attempts"`
	ConnectSuccesses int64     `json:"connect_successes"`
	ConnectFailures  int64     `json:"connect_failures"`
	HealthFailures   int64     `json:"health_failures"`
	Restarts         int64     `json:"restarts"`
	LastConnectedAt  time.Time `json:"last_connected_at,omitempty"`
	LastFailureAt    time.Time `json:"last_failure_at,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
}

func (m *ConnectionMetrics) Summary() ConnectionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := ConnectionSummary{
		TotalConnectAttempts: m.totalConnectAttempts,
		TotalConnectSuccess:  m.totalConnectSuccess,
		TotalConnectFailure:  m.totalConnectFailure,
		TotalHealthFailures:  m.totalHealthFailures,
		TotalRestarts:        m.totalRestarts,
	}
	for _, metrics := range m.perServer {
		summary.PerServer = append(summary.PerServer, ConnectionServerView{
			Name:             metrics.Name,
			ConnectAttempts:  metrics.ConnectAttempts,
			ConnectSuccesses: metrics.ConnectSuccesses,
			ConnectFailures:  metrics.ConnectFailures,
			HealthFailures:   metrics.HealthFailures,
			Restarts:         metrics.Restarts,
			LastConnectedAt:  metrics.LastConnectedAt,
			LastFailureAt:    metrics.LastFailureAt,
			LastError:        metrics.LastError,
		})
	}
	return summary
}
