package peerpool

import (
	"time"

	"github.com/meridiankv/meridian/internal/cluster"
	"github.com/meridiankv/meridian/pkg/cmap"
)

// Pool is the thread-safe set of known peers (§4.7). It has no capacity
// limit: Add always inserts or replaces.
type Pool struct {
	peers *cmap.Map[uint16, Peer]
}

// New creates an empty peer pool.
func New() *Pool {
	return &Pool{peers: cmap.New[uint16, Peer]()}
}

// Add inserts or replaces a peer entry.
func (p *Pool) Add(peer Peer) {
	p.peers.Set(peer.NodeID, peer)
}

// Remove drops a peer from the pool.
func (p *Pool) Remove(nodeID uint16) {
	p.peers.Delete(nodeID)
}

// Get returns a peer by node id.
func (p *Pool) Get(nodeID uint16) (Peer, bool) {
	return p.peers.Get(nodeID)
}

// UpdateStatus transitions a peer's liveness status, stamping
// RecoveredAtMs when the transition is Suspect/Dead -> Alive.
func (p *Pool) UpdateStatus(nodeID uint16, status cluster.Status) {
	p.peers.Update(nodeID, func(peer Peer, exists bool) Peer {
		if !exists {
			return Peer{NodeID: nodeID, Status: status, LastSeenMs: nowMs()}
		}
		if status == cluster.Alive && peer.Status != cluster.Alive {
			peer.RecoveredAtMs = nowMs()
		}
		peer.Status = status
		peer.LastSeenMs = nowMs()
		return peer
	})
}

// UpdateLoad records a peer's current load figures.
func (p *Pool) UpdateLoad(nodeID uint16, loadScore float64, activeExecutions int) {
	p.peers.Update(nodeID, func(peer Peer, exists bool) Peer {
		if !exists {
			return Peer{NodeID: nodeID, LoadScore: loadScore, ActiveExecutions: activeExecutions}
		}
		peer.LoadScore = loadScore
		peer.ActiveExecutions = activeExecutions
		return peer
	})
}

// UpdateCapabilities replaces a peer's advertised capability set.
func (p *Pool) UpdateCapabilities(nodeID uint16, capabilities []string) {
	p.peers.Update(nodeID, func(peer Peer, exists bool) Peer {
		if !exists {
			return Peer{NodeID: nodeID, Capabilities: capabilities}
		}
		peer.Capabilities = capabilities
		return peer
	})
}

// ListAlive returns every peer currently marked Alive.
func (p *Pool) ListAlive() []Peer {
	var out []Peer
	p.peers.Range(func(_ uint16, peer Peer) bool {
		if peer.Status == cluster.Alive {
			out = append(out, peer)
		}
		return true
	})
	return out
}

// ListByCapability returns every Alive peer advertising capability.
func (p *Pool) ListByCapability(capability string) []Peer {
	var out []Peer
	p.peers.Range(func(_ uint16, peer Peer) bool {
		if peer.Status == cluster.Alive && peer.hasCapability(capability) {
			out = append(out, peer)
		}
		return true
	})
	return out
}

// Len returns the number of known peers, including non-Alive ones.
func (p *Pool) Len() int {
	return p.peers.Count()
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
