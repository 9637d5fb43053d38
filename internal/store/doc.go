// Package store implements the eventual-consistency datastore (§4.5): a
// fixed-capacity, open-addressed array of record slots hashed by
// murmur3, with set/get/unset, last-writer-wins merge, delta sync, and
// the fixed binary wire format used for gossip-driven replication.
package store
