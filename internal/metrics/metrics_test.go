package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionMetrics_TracksPerServerAndGlobalCounters(t *testing.T) {
	m := NewConnectionMetrics()
	m.RecordConnectAttempt("backend-a")
	m.RecordConnectSuccess("backend-a")
	m.RecordConnectAttempt("backend-b")
	m.RecordConnectFailure("backend-b", errors.New("dial refused"))
	m.RecordHealthCheckFailure("backend-a", errors.New("timeout"))
	m.RecordRestart("backend-b")

	summary := m.Summary()
	assert.Equal(t, int64(2), summary.TotalConnectAttempts)
	assert.Equal(t, int64(1), summary.TotalConnectSuccess)
	assert.Equal(t, int64(1), summary.TotalConnectFailure)
	assert.Equal(t, int64(1), summary.TotalHealthFailures)
	assert.Equal(t, int64(1), summary.TotalRestarts)
	assert.Len(t, summary.PerServer, 2)
}

func TestConnectionMetrics_RecordConnectFailure_CapturesLastError(t *testing.T) {
	m := NewConnectionMetrics()
	m.RecordConnectAttempt("backend-a")
	m.RecordConnectFailure("backend-a", errors.New("connection reset"))

	summary := m.Summary()
	assert.Len(t, summary.PerServer, 1)
	assert.Equal(t, "connection reset", summary.PerServer[0].LastError)
}

func TestDiscoveryMetrics_TracksOutcomeCounters(t *testing.T) {
	m := NewDiscoveryMetrics()
	m.RecordRequest()
	m.RecordMatched()
	m.RecordRequest()
	m.RecordNoCandidate()
	m.RecordRequest()
	m.RecordAmbiguous()
	m.RecordLowConfidence()
	m.RecordEmbeddingError()
	m.RecordLLMError()
	m.RecordSchemaInvalid()

	summary := m.Summary()
	assert.Equal(t, int64(3), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.TotalMatched)
	assert.Equal(t, int64(1), summary.TotalNoCandidate)
	assert.Equal(t, int64(1), summary.TotalAmbiguous)
	assert.Equal(t, int64(1), summary.TotalLowConfidence)
	assert.Equal(t, int64(1), summary.TotalEmbeddingError)
	assert.Equal(t, int64(1), summary.TotalLLMError)
	assert.Equal(t, int64(1), summary.TotalSchemaInvalid)
}
