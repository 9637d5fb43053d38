// Package errkind defines the closed set of failure kinds surfaced at the
// core API (§7) and the typed error that carries one plus call-site
// context. The operations of store (Datastore, key validation, record
// decoding), cluster.View, and raftkv.Node's command path (SubmitCommand,
// WaitCommitted, EnsureLeader) return a *errkind.Error rather than an
// opaque error, so the handler layer can translate failures into response
// status without string matching. raftkv.NewNode, Node.AddVoter,
// Node.RemoveServer and the Raft snapshot store return plain errors.
package errkind
