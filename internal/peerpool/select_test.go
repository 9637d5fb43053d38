package peerpool

import (
	"testing"
	"time"

	"github.com/meridiankv/meridian/internal/cluster"
	"github.com/stretchr/testify/require"
)

func TestSelectLeastLoaded(t *testing.T) {
	p := New()
	p.Add(Peer{NodeID: 1, Status: cluster.Alive, Capabilities: []string{"execute"}, ActiveExecutions: 5, LoadScore: 0})
	p.Add(Peer{NodeID: 2, Status: cluster.Alive, Capabilities: []string{"execute"}, ActiveExecutions: 1, LoadScore: 0.1})
	p.Add(Peer{NodeID: 3, Status: cluster.Dead, Capabilities: []string{"execute"}, ActiveExecutions: 0, LoadScore: 0})

	peer, ok := p.SelectLeastLoaded("execute")
	require.True(t, ok)
	require.Equal(t, uint16(2), peer.NodeID)
}

func TestSelectLeastLoaded_NoCandidates(t *testing.T) {
	p := New()
	_, ok := p.SelectLeastLoaded("execute")
	require.False(t, ok)
}

func TestRoundRobin_CyclesEligiblePeers(t *testing.T) {
	p := New()
	p.Add(Peer{NodeID: 1, Status: cluster.Alive, Capabilities: []string{"route"}})
	p.Add(Peer{NodeID: 2, Status: cluster.Alive, Capabilities: []string{"route"}})

	rr := NewRoundRobin(p)

	seen := map[uint16]bool{}
	for i := 0; i < 4; i++ {
		peer, ok := rr.Select("route")
		require.True(t, ok)
		seen[peer.NodeID] = true
	}
	require.Len(t, seen, 2)
}

func TestRoundRobin_SkipsNonAlive(t *testing.T) {
	p := New()
	p.Add(Peer{NodeID: 1, Status: cluster.Dead, Capabilities: []string{"route"}})
	p.Add(Peer{NodeID: 2, Status: cluster.Alive, Capabilities: []string{"route"}})

	rr := NewRoundRobin(p)
	for i := 0; i < 5; i++ {
		peer, ok := rr.Select("route")
		require.True(t, ok)
		require.Equal(t, uint16(2), peer.NodeID)
	}
}

func TestRoundRobin_ThrottlesRecoveringPeer(t *testing.T) {
	p := New()
	p.Add(Peer{NodeID: 1, Status: cluster.Alive, Capabilities: []string{"route"}, RecoveredAtMs: time.Now().UnixMilli()})

	rr := NewRoundRobin(p)

	_, ok := rr.Select("route")
	require.True(t, ok)

	// Second immediate selection should be throttled away: no other
	// peer exists to fall back on, so it's ineligible this round.
	_, ok = rr.Select("route")
	require.False(t, ok)
}

func TestRoundRobin_NoCandidates(t *testing.T) {
	p := New()
	rr := NewRoundRobin(p)
	_, ok := rr.Select("route")
	require.False(t, ok)
}
