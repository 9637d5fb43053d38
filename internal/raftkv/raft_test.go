package raftkv

import (
	"testing"
	"time"

	"github.com/meridiankv/meridian/internal/errkind"
	"github.com/meridiankv/meridian/internal/store"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, addr string, bootstrap bool) (*Node, *store.Datastore) {
	t.Helper()

	ds := store.NewDatastore(64, 64)
	cfg := Config{
		NodeID:            1,
		BindAddr:          addr,
		DataDir:           t.TempDir(),
		Bootstrap:         bootstrap,
		HeartbeatTimeout:  100 * time.Millisecond,
		ElectionTimeout:   100 * time.Millisecond,
		CommitTimeout:     10 * time.Millisecond,
		SnapshotThreshold: 1024,
		Logger:            logger.Default(),
	}

	node, err := NewNode(cfg, ds)
	require.NoError(t, err)
	t.Cleanup(func() { node.Close() })

	return node, ds
}

func TestNode_Bootstrap_BecomesLeader(t *testing.T) {
	node, _ := newTestNode(t, "127.0.0.1:18601", true)

	require.Eventually(t, func() bool {
		return node.IsLeader()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNode_SubmitCommand_NotLeaderBeforeElection(t *testing.T) {
	node, ds := newTestNode(t, "127.0.0.1:18602", false)
	_ = ds

	_, _, err := node.SubmitCommand(Command{Type: CommandSet, Key: "k1", Value: []byte("v1")}, time.Second)
	require.True(t, errkind.Is(err, errkind.NOT_LEADER))
}

func TestNode_SubmitCommand_AppliesToDatastore(t *testing.T) {
	node, ds := newTestNode(t, "127.0.0.1:18603", true)

	require.Eventually(t, func() bool {
		return node.IsLeader()
	}, 2*time.Second, 10*time.Millisecond)

	index, term, err := node.SubmitCommand(Command{Type: CommandSet, Key: "k1", Value: []byte("v1"), Owner: 1}, time.Second)
	require.NoError(t, err)
	require.Greater(t, index, uint64(0))
	require.GreaterOrEqual(t, term, uint64(1))

	require.NoError(t, node.WaitCommitted(index, time.Second))

	rec, err := ds.Get("k1")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), rec.Value)
}

func TestNode_EnsureLeader(t *testing.T) {
	node, _ := newTestNode(t, "127.0.0.1:18604", true)

	require.Eventually(t, func() bool {
		return node.EnsureLeader() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNode_LeaderID_ZeroWhenUnknown(t *testing.T) {
	node, _ := newTestNode(t, "127.0.0.1:18605", false)
	require.Equal(t, uint16(0), node.LeaderID())
}
