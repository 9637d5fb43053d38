// Package cluster implements cluster membership: the fixed-capacity
// ClusterView (§4.3), the gossip engine that drives its transitions
// (§4.4), and the event bus membership changes publish to. memberlist is
// used purely as SWIM transport plumbing (UDP probing, TCP push/pull,
// reliable unicast); the ALIVE/SUSPECT/DEAD incarnation state machine
// itself lives entirely in ClusterView, independent of memberlist's own
// node table.
package cluster
