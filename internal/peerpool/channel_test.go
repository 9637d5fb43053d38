package peerpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannels_Get_ReusesClient(t *testing.T) {
	c := NewChannels()
	peer := Peer{NodeID: 1, IP: "127.0.0.1", DataPort: 19999}

	first := c.Get(peer)
	second := c.Get(peer)
	require.Same(t, first, second)
}

func TestChannels_Drop_ClosesAndEvicts(t *testing.T) {
	c := NewChannels()
	peer := Peer{NodeID: 1, IP: "127.0.0.1", DataPort: 19999}

	first := c.Get(peer)
	c.Drop(1)
	second := c.Get(peer)

	require.NotSame(t, first, second)
}

func TestChannels_CloseAll(t *testing.T) {
	c := NewChannels()
	c.Get(Peer{NodeID: 1, IP: "127.0.0.1", DataPort: 19999})
	c.Get(Peer{NodeID: 2, IP: "127.0.0.1", DataPort: 19998})

	c.CloseAll()
}
