package cluster

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/meridiankv/meridian/internal/config"
)

// Membership is the thin lifecycle handle NodeState holds: it owns the
// View and Gossip engine and exposes the join/leave surface §4.8 needs.
type Membership struct {
	View   *View
	Bus    *EventBus
	gossip *Gossip
}

// NewMembership builds the View, EventBus, and Gossip engine for a node
// from its configuration.
func NewMembership(cfg *config.Config) (*Membership, error) {
	host, portStr, err := net.SplitHostPort(cfg.Ports.GossipAddr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	_, dataPortStr, err := net.SplitHostPort(cfg.Ports.DataAddr)
	if err != nil {
		return nil, err
	}
	dataPort, err := strconv.Atoi(dataPortStr)
	if err != nil {
		return nil, err
	}

	bus := NewEventBus()
	view := NewView(cfg.Gossip.ClusterCapacity, bus)

	self := Member{
		NodeID:      cfg.NodeID,
		NodeType:    cfg.NodeType,
		IP:          host,
		GossipPort:  port,
		DataPort:    dataPort,
		Status:      Alive,
		Incarnation: 1,
		LastSeenMs:  nowMs(),
	}

	gossip := NewGossip(GossipConfig{
		TickInterval:   cfg.Gossip.TickInterval,
		FanOut:         cfg.Gossip.FanOut,
		SuspectTimeout: cfg.Gossip.SuspectTimeout,
		DeadTimeout:    cfg.Gossip.DeadTimeout,
	}, self, view)

	return &Membership{View: view, Bus: bus, gossip: gossip}, nil
}

// Start binds the gossip transport and begins the tick/suspicion loops.
func (m *Membership) Start(ctx context.Context) error {
	return m.gossip.Start(ctx)
}

// Bootstrap iterates configured seeds, joining via the first that
// accepts, then waits up to window for the view to pick up peers
// (§4.8 bootstrap).
func (m *Membership) Bootstrap(seeds []string, window time.Duration) error {
	if err := m.gossip.Join(seeds); err != nil {
		return err
	}
	if len(seeds) == 0 {
		return nil
	}

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if m.View.Len() > 1 {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// Leave issues a graceful LEAVE and tears down the gossip transport.
func (m *Membership) Leave(timeout time.Duration) error {
	return m.gossip.Leave(timeout)
}
