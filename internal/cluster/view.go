package cluster

import (
	"sync"
	"time"

	"github.com/meridiankv/meridian/internal/config"
	"github.com/meridiankv/meridian/internal/errkind"
)

// View is the fixed-capacity, reader-writer-locked set of cluster
// members (§3 ClusterView, §4.3 operations). Snapshot and the List
// methods return members in no particular order.
type View struct {
	mu       sync.RWMutex
	capacity int
	members  map[uint16]Member
	bus      *EventBus
}

// NewView creates a View with the given capacity, publishing membership
// transitions to bus (which may be nil to disable event publication).
func NewView(capacity int, bus *EventBus) *View {
	return &View{
		capacity: capacity,
		members:  make(map[uint16]Member, capacity),
		bus:      bus,
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// Add inserts or merges member into the view per §4.3's add rule: an
// unknown node_id is inserted if capacity allows; a known DEAD node_id
// is replaced by an ALIVE rejoin; otherwise the update applies only if
// its incarnation is >= the current one, and is ignored (not an error)
// if stale.
func (v *View) Add(member Member) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	current, exists := v.members[member.NodeID]
	if !exists {
		if len(v.members) >= v.capacity {
			return errkind.New(errkind.FULL, "cluster.View.Add", "cluster view at capacity")
		}
		v.members[member.NodeID] = member
		v.publish(PeerJoined, member)
		return nil
	}

	switch {
	case current.Status == Dead && member.Status == Alive:
		v.members[member.NodeID] = member
		v.publish(PeerJoined, member)
	case member.Incarnation >= current.Incarnation:
		v.members[member.NodeID] = member
		v.publish(PeerUpdated, member)
	default:
		// Stale update; silently ignored per §4.3.
	}
	return nil
}

// UpdateStatus applies a status transition for nodeID if incarnation is
// >= the member's current incarnation. Fails with NOT_FOUND if nodeID is
// unknown.
func (v *View) UpdateStatus(nodeID uint16, status Status, incarnation uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	current, exists := v.members[nodeID]
	if !exists {
		return errkind.New(errkind.NOT_FOUND, "cluster.View.UpdateStatus", "node_id unknown")
	}
	if incarnation < current.Incarnation {
		return nil
	}

	if status == Alive || (current.Status == Alive && status == Suspect) {
		current.LastSeenMs = nowMs()
	}
	current.Status = status
	current.Incarnation = incarnation
	v.members[nodeID] = current

	switch status {
	case Alive:
		v.publish(PeerUpdated, current)
	case Suspect:
		v.publish(PeerSuspect, current)
	case Dead:
		v.publish(PeerFailed, current)
	}
	return nil
}

// Remove deletes nodeID from the view. Fails with NOT_FOUND if unknown.
func (v *View) Remove(nodeID uint16) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	member, exists := v.members[nodeID]
	if !exists {
		return errkind.New(errkind.NOT_FOUND, "cluster.View.Remove", "node_id unknown")
	}
	delete(v.members, nodeID)
	v.publish(PeerLeft, member)
	return nil
}

// Get returns a copy of the member for nodeID, or NOT_FOUND.
func (v *View) Get(nodeID uint16) (Member, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	member, exists := v.members[nodeID]
	if !exists {
		return Member{}, errkind.New(errkind.NOT_FOUND, "cluster.View.Get", "node_id unknown")
	}
	return member, nil
}

// ListByType returns a snapshot copy of members with the given node type.
func (v *View) ListByType(nodeType config.NodeType) []Member {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Member, 0, len(v.members))
	for _, m := range v.members {
		if m.NodeType == nodeType {
			out = append(out, m)
		}
	}
	return out
}

// ListAlive returns a snapshot copy of members currently ALIVE.
func (v *View) ListAlive() []Member {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Member, 0, len(v.members))
	for _, m := range v.members {
		if m.Status == Alive {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot returns a copy of every member in the view, for digest
// exchange and delta computation.
func (v *View) Snapshot() []Member {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Member, 0, len(v.members))
	for _, m := range v.members {
		out = append(out, m)
	}
	return out
}

// Len returns the current member count.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.members)
}

func (v *View) publish(eventType EventType, member Member) {
	if v.bus == nil {
		return
	}
	v.bus.Publish(Event{Type: eventType, Member: member})
}
