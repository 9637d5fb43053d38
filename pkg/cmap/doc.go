// Package cmap provides a concurrent-safe sharded map used for this
// module's peer registry: the node-ID-keyed peer table (internal/peerpool.Pool)
// and its lazily-dialed data-plane client cache (internal/peerpool.Channels).
//
// Keys are always uint16 node IDs, so the shard count is tuned for cluster
// sizes, not web-scale key spaces, and lookups hash the integer directly
// instead of round-tripping through a formatted string.
//
// Usage:
//
//	m := cmap.New[uint16, Peer]()
//	m.Set(nodeID, peer)
//	peer, ok := m.Get(nodeID)
package cmap
