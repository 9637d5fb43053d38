// Package node wires together every subsystem into one running process:
// cluster membership, peer pool, datastore, the optional Raft overlay,
// the RPC transports, and the metrics registry (§4.8).
//
//   - capabilities.go: capability detection from configuration
//   - state.go: subsystem allocation, start/bootstrap/shutdown lifecycle
//   - handlers.go: §4.9 handler registration and wire-contract bodies
package node
