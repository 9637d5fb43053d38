package peerpool

import (
	"net"
	"strconv"

	"github.com/meridiankv/meridian/internal/rpc"
	"github.com/meridiankv/meridian/pkg/cmap"
)

// Channels manages the one data-plane rpc.Client per peer, opened
// lazily on first use and reused thereafter (§4.7).
type Channels struct {
	clients *cmap.Map[uint16, *rpc.Client]
}

// NewChannels creates an empty channel cache.
func NewChannels() *Channels {
	return &Channels{clients: cmap.New[uint16, *rpc.Client]()}
}

// Get returns the data-plane client for peer, dialing lazily on first
// use. The connection itself is established on first Call, not here.
func (c *Channels) Get(peer Peer) *rpc.Client {
	addr := net.JoinHostPort(peer.IP, strconv.Itoa(peer.DataPort))
	client, _ := c.clients.GetOrSet(peer.NodeID, rpc.NewClient(addr))
	return client
}

// Drop closes and evicts the cached client for nodeID, if any. Called
// when a peer is removed from the pool or its data address changes.
func (c *Channels) Drop(nodeID uint16) {
	if client, ok := c.clients.Pop(nodeID); ok {
		client.Close()
	}
}

// CloseAll closes every cached client, for shutdown.
func (c *Channels) CloseAll() {
	for _, client := range c.clients.Values() {
		client.Close()
	}
}
