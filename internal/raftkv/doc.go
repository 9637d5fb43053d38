// Package raftkv implements the linearizable replication overlay (§4.6):
// a single-group hashicorp/raft cluster whose FSM applies SET/UNSET
// commands to a store.Datastore, with a badger-backed snapshot store.
package raftkv
