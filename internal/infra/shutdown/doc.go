// Package shutdown coordinates graceful process termination for a
// meridian-node process.
//
// It traps SIGINT/SIGTERM, then runs registered hooks in reverse
// registration order under a single overall deadline. node.State's own
// Shutdown method is registered as one such hook and performs its own
// internal teardown order (membership leave, maintenance thread drain,
// transport shutdown, raft close, channel close); this package only
// names and times that hook and any others registered alongside it.
//
// Usage:
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("node", n.Shutdown)
//	h.Wait()
package shutdown
