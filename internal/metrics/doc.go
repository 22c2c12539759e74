// Package metrics holds in-process counters for external-server health
// events and smart-discovery outcomes, modeled on muster's
// aggregator.AuthMetrics: per-name counters behind a sync.RWMutex, with a
// flattened summary view safe to marshal for a status endpoint.
package metrics
