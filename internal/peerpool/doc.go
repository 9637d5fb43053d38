// Package peerpool holds the set of peers a node routes RPCs to (§4.7):
// liveness/load/capability bookkeeping plus least-loaded and round-robin
// selection, and lazy, reused data-plane connections. The pool has no
// capacity limit.
package peerpool
