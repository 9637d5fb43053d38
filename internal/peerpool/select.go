package peerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridiankv/meridian/internal/cluster"
	"golang.org/x/time/rate"
)

// recoveryWindow bounds how long a peer that just rejoined Alive is
// still considered "recovering" and subject to the round-robin
// throttle below.
const recoveryWindow = 10 * time.Second

// SelectLeastLoaded returns the Alive, capability-matching peer
// minimizing active_executions + 10*load_score (§4.7).
func (p *Pool) SelectLeastLoaded(capability string) (Peer, bool) {
	candidates := p.ListByCapability(capability)
	if len(candidates) == 0 {
		return Peer{}, false
	}

	best := candidates[0]
	bestLoad := best.loadFactor()
	for _, c := range candidates[1:] {
		if load := c.loadFactor(); load < bestLoad {
			best, bestLoad = c, load
		}
	}
	return best, true
}

// recoveryLimiter gates dispatch rate toward a single just-recovered
// peer, so a flapping node doesn't immediately receive a full share of
// round-robin traffic.
type recoveryLimiter struct {
	mu       sync.Mutex
	limiters map[uint16]*rate.Limiter
}

func newRecoveryLimiter() *recoveryLimiter {
	return &recoveryLimiter{limiters: make(map[uint16]*rate.Limiter)}
}

func (r *recoveryLimiter) allow(nodeID uint16) bool {
	r.mu.Lock()
	l, ok := r.limiters[nodeID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Second), 1)
		r.limiters[nodeID] = l
	}
	r.mu.Unlock()
	return l.Allow()
}

// RoundRobin implements select_round_robin: it cycles through
// Alive/capable peers, skipping non-alive or non-capable ones, and
// throttles (rather than skips outright) dispatch to a peer still
// inside its post-recovery window.
type RoundRobin struct {
	pool     *Pool
	index    atomic.Uint64
	throttle *recoveryLimiter
}

// NewRoundRobin creates a round-robin selector over pool.
func NewRoundRobin(pool *Pool) *RoundRobin {
	return &RoundRobin{pool: pool, throttle: newRecoveryLimiter()}
}

// Select returns the next eligible peer advertising capability, or
// false if none are currently eligible.
func (r *RoundRobin) Select(capability string) (Peer, bool) {
	candidates := r.pool.ListByCapability(capability)
	if len(candidates) == 0 {
		return Peer{}, false
	}

	n := len(candidates)
	start := int(r.index.Add(1) % uint64(n))

	for i := 0; i < n; i++ {
		c := candidates[(start+i)%n]
		if c.Status != cluster.Alive {
			continue
		}
		if r.recovering(c) && !r.throttle.allow(c.NodeID) {
			continue
		}
		return c, true
	}
	return Peer{}, false
}

func (r *RoundRobin) recovering(peer Peer) bool {
	if peer.RecoveredAtMs == 0 {
		return false
	}
	return time.Since(time.UnixMilli(peer.RecoveredAtMs)) < recoveryWindow
}
