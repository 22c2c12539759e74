package metrics

import (
	"sync"
)

// DiscoveryMetrics tracks smart-discovery outcomes (spec.md §4.6 failure
// taxonomy), following the same counters-behind-a-mutex shape as
// ConnectionMetrics.
type DiscoveryMetrics struct {
	mu sync.RWMutex

	totalRequests       int64
	totalMatched        int64
	totalNoCandidate    int64
	totalAmbiguous      int64
	totalLowConfidence  int64
	totalEmbeddingError int64
	totalLLMError       int64
	totalSchemaInvalid  int64
}

func NewDiscoveryMetrics() *DiscoveryMetrics {
	return &DiscoveryMetrics{}
}

func (m *DiscoveryMetrics) RecordRequest() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
}

func (m *DiscoveryMetrics) RecordMatched() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalMatched++
}

func (m *DiscoveryMetrics) RecordNoCandidate() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalNoCandidate++
}

func (m *DiscoveryMetrics) RecordAmbiguous() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalAmbiguous++
}

func (m *DiscoveryMetrics) RecordLowConfidence() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalLowConfidence++
}

func (m *DiscoveryMetrics) RecordEmbeddingError() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalEmbeddingError++
}

func (m *DiscoveryMetrics) RecordLLMError() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalLLMError++
}

func (m *DiscoveryMetrics) RecordSchemaInvalid() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSchemaInvalid++
}

// DiscoverySummary is a read-only snapshot for a status endpoint.
type DiscoverySummary struct {
	TotalRequests       int64 `json:"total_requests"`
	TotalMatched        int64 `json:"total_matched"`
	TotalNoCandidate    int64 `json:"total_no_candidate"`
	TotalAmbiguous      int64 `json:"total_ambiguous"`
	TotalLowConfidence  int64 `json:"total_low_confidence"`
	TotalEmbeddingError int64 `json:"total_embedding_error"`
	TotalLLMError       int64 `json:"total_llm_error"`
	TotalSchemaInvalid  int64 `json:"total_schema_invalid"`
}

func (m *DiscoveryMetrics) Summary() DiscoverySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return DiscoverySummary{
		TotalRequests:       m.totalRequests,
		TotalMatched:        m.totalMatched,
		TotalNoCandidate:    m.totalNoCandidate,
		TotalAmbiguous:      m.totalAmbiguous,
		TotalLowConfidence:  m.totalLowConfidence,
		TotalEmbeddingError: m.totalEmbeddingError,
		TotalLLMError:       m.totalLLMError,
		TotalSchemaInvalid:  m.totalSchemaInvalid,
	}
}
