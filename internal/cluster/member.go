package cluster

import "github.com/meridiankv/meridian/internal/config"

// Status is a member's membership state.
type Status int

const (
	Alive Status = iota
	Suspect
	Dead
)

func (s Status) String() string {
	switch s {
	case Alive:
		return "ALIVE"
	case Suspect:
		return "SUSPECT"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Member is a single cluster member (§3 ClusterMember). At most one
// Member exists per NodeID in a ClusterView; any update to an existing
// Member must carry Incarnation >= the current one to take effect.
type Member struct {
	NodeID      uint16
	NodeType    config.NodeType
	IP          string
	GossipPort  int
	DataPort    int
	Status      Status
	Incarnation uint64
	LastSeenMs  int64
}

// Clone returns a value copy of m, safe to hand to a caller outside the
// view's lock.
func (m Member) Clone() Member {
	return m
}
