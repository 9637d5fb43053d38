package cluster

import (
	"testing"

	"github.com/meridiankv/meridian/internal/config"
	"github.com/meridiankv/meridian/internal/errkind"
	"github.com/stretchr/testify/require"
)

func TestView_Add_NewMember(t *testing.T) {
	v := NewView(2, nil)

	err := v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 1})
	require.NoError(t, err)
	require.Equal(t, 1, v.Len())

	got, err := v.Get(1)
	require.NoError(t, err)
	require.Equal(t, Alive, got.Status)
}

func TestView_Add_CapacityFull(t *testing.T) {
	v := NewView(1, nil)
	require.NoError(t, v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 1}))

	err := v.Add(Member{NodeID: 2, Status: Alive, Incarnation: 1})
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.FULL))
}

func TestView_Add_StaleIncarnationIgnored(t *testing.T) {
	v := NewView(4, nil)
	require.NoError(t, v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 5}))

	err := v.Add(Member{NodeID: 1, Status: Suspect, Incarnation: 3})
	require.NoError(t, err)

	got, err := v.Get(1)
	require.NoError(t, err)
	require.Equal(t, Alive, got.Status)
	require.Equal(t, uint64(5), got.Incarnation)
}

func TestView_Add_DeadToAliveRejoin(t *testing.T) {
	v := NewView(4, nil)
	require.NoError(t, v.Add(Member{NodeID: 1, Status: Dead, Incarnation: 5}))

	err := v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 1})
	require.NoError(t, err)

	got, err := v.Get(1)
	require.NoError(t, err)
	require.Equal(t, Alive, got.Status)
	require.Equal(t, uint64(1), got.Incarnation)
}

func TestView_UpdateStatus_NotFound(t *testing.T) {
	v := NewView(4, nil)
	err := v.UpdateStatus(99, Suspect, 1)
	require.Error(t, err)
	require.True(t, errkind.Is(err, errkind.NOT_FOUND))
}

func TestView_UpdateStatus_StaleIgnored(t *testing.T) {
	v := NewView(4, nil)
	require.NoError(t, v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 5}))

	require.NoError(t, v.UpdateStatus(1, Dead, 2))

	got, _ := v.Get(1)
	require.Equal(t, Alive, got.Status)
}

func TestView_Remove(t *testing.T) {
	v := NewView(4, nil)
	require.NoError(t, v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 1}))
	require.NoError(t, v.Remove(1))

	_, err := v.Get(1)
	require.True(t, errkind.Is(err, errkind.NOT_FOUND))

	err = v.Remove(1)
	require.True(t, errkind.Is(err, errkind.NOT_FOUND))
}

func TestView_ListByType_ListAlive(t *testing.T) {
	v := NewView(4, nil)
	require.NoError(t, v.Add(Member{NodeID: 1, NodeType: config.NodeTypeRouter, Status: Alive, Incarnation: 1}))
	require.NoError(t, v.Add(Member{NodeID: 2, NodeType: config.NodeTypeWorker, Status: Alive, Incarnation: 1}))
	require.NoError(t, v.Add(Member{NodeID: 3, NodeType: config.NodeTypeWorker, Status: Dead, Incarnation: 1}))

	routers := v.ListByType(config.NodeTypeRouter)
	require.Len(t, routers, 1)
	require.Equal(t, uint16(1), routers[0].NodeID)

	alive := v.ListAlive()
	require.Len(t, alive, 2)
}

func TestView_Events(t *testing.T) {
	bus := NewEventBus()
	ch, id := bus.Subscribe(8)
	defer bus.Unsubscribe(id)

	v := NewView(4, bus)
	require.NoError(t, v.Add(Member{NodeID: 1, Status: Alive, Incarnation: 1}))
	require.NoError(t, v.UpdateStatus(1, Suspect, 2))
	require.NoError(t, v.Remove(1))

	var types []EventType
	for i := 0; i < 3; i++ {
		ev := <-ch
		types = append(types, ev.Type)
	}
	require.Equal(t, []EventType{PeerJoined, PeerSuspect, PeerLeft}, types)
}
