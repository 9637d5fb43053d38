// Package metric provides the node's Prometheus metrics registry.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry construction and the /metrics HTTP handler
//   - collector.go: a custom collector for derived, scrape-time values (uptime)
//
// Metrics cover datastore size and operation counts, cluster member counts
// by status, gossip round-trip latency, and (when Raft is enabled) term,
// leadership, and commit index.
package metric
