package peerpool

import "github.com/meridiankv/meridian/internal/cluster"

// Peer is a single entry in the pool (§4.7). RecoveredAtMs is non-zero
// for the window after a transition into Alive from Suspect/Dead, and
// gates the extra round-robin throttle in SelectRoundRobin.
type Peer struct {
	NodeID           uint16
	IP               string
	GossipPort       int
	DataPort         int
	Status           cluster.Status
	LastSeenMs       int64
	RecoveredAtMs    int64
	LoadScore        float64
	ActiveExecutions int
	Capabilities     []string
}

// loadFactor is the weighted load figure select_least_loaded minimizes:
// active_executions + 10 * load_score.
func (p Peer) loadFactor() float64 {
	return float64(p.ActiveExecutions) + 10*p.LoadScore
}

func (p Peer) hasCapability(capability string) bool {
	if capability == "" {
		return true
	}
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
