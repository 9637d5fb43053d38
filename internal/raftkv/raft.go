package raftkv

import (
	"fmt"
	"io"
	stdlog "log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/meridiankv/meridian/internal/config"
	"github.com/meridiankv/meridian/internal/errkind"
	"github.com/meridiankv/meridian/internal/store"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
)

// Config configures a Node's Raft instance (§4.6, §6 RaftSection).
type Config struct {
	NodeID    uint16
	BindAddr  string
	DataDir   string
	Bootstrap bool

	HeartbeatTimeout  time.Duration
	ElectionTimeout   time.Duration
	CommitTimeout     time.Duration
	SnapshotThreshold uint64

	Logger logger.Logger
}

// FromSection builds a raftkv.Config from the node's §6 configuration.
func FromSection(nodeID uint16, bindAddr string, sec config.RaftSection, log logger.Logger) Config {
	return Config{
		NodeID:            nodeID,
		BindAddr:          bindAddr,
		DataDir:           sec.DataDir,
		Bootstrap:         sec.Bootstrap,
		HeartbeatTimeout:  sec.HeartbeatTimeout,
		ElectionTimeout:   sec.ElectionTimeout,
		CommitTimeout:     sec.CommitTimeout,
		SnapshotThreshold: sec.SnapshotThreshold,
		Logger:            log,
	}
}

// Node wraps hashicorp/raft with this module's SET/UNSET command
// contract over a store.Datastore (§4.6).
type Node struct {
	raft      *raft.Raft
	transport *raft.NetworkTransport
	fsm       *FSM
	logger    logger.Logger

	logStore      raft.LogStore
	stableStore   raft.StableStore
	snapshotStore *SnapshotStore

	leaderCh chan bool
}

// NewNode creates and starts a Raft node applying commands to ds.
func NewNode(cfg Config, ds *store.Datastore) (*Node, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("raftkv: data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("raftkv: create data dir: %w", err)
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(strconv.Itoa(int(cfg.NodeID)))
	raftConfig.Logger = &hclogAdapter{logger: cfg.Logger}

	if cfg.HeartbeatTimeout > 0 {
		raftConfig.HeartbeatTimeout = cfg.HeartbeatTimeout
	}
	if cfg.ElectionTimeout > 0 {
		raftConfig.ElectionTimeout = cfg.ElectionTimeout
	}
	if cfg.CommitTimeout > 0 {
		raftConfig.CommitTimeout = cfg.CommitTimeout
	}
	if cfg.SnapshotThreshold > 0 {
		raftConfig.SnapshotThreshold = cfg.SnapshotThreshold
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftkv: resolve bind addr: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftkv: create transport: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("raftkv: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		logStore.Close()
		transport.Close()
		return nil, fmt.Errorf("raftkv: create stable store: %w", err)
	}

	snapshotStore, err := NewSnapshotStore(filepath.Join(cfg.DataDir, "raft-snapshots"), 3, cfg.Logger)
	if err != nil {
		stableStore.Close()
		logStore.Close()
		transport.Close()
		return nil, fmt.Errorf("raftkv: create snapshot store: %w", err)
	}

	leaderCh := make(chan bool, 10)
	raftConfig.NotifyCh = leaderCh

	fsm := NewFSM(ds, cfg.Logger)

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		snapshotStore.Close()
		stableStore.Close()
		logStore.Close()
		transport.Close()
		return nil, fmt.Errorf("raftkv: create raft: %w", err)
	}

	node := &Node{
		raft:          r,
		transport:     transport,
		fsm:           fsm,
		logger:        cfg.Logger,
		logStore:      logStore,
		stableStore:   stableStore,
		snapshotStore: snapshotStore,
		leaderCh:      leaderCh,
	}

	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{ID: raftConfig.LocalID, Address: transport.LocalAddr()},
			},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil {
			node.Close()
			return nil, fmt.Errorf("raftkv: bootstrap cluster: %w", err)
		}
	}

	cfg.Logger.Info("raft node started", "node_id", cfg.NodeID, "bind_addr", cfg.BindAddr, "bootstrap", cfg.Bootstrap)
	return node, nil
}

// SubmitCommand applies cmd through Raft. Returns the committed
// (index, term) or NOT_LEADER if this node is not currently leader.
func (n *Node) SubmitCommand(cmd Command, timeout time.Duration) (uint64, uint64, error) {
	if n.raft.State() != raft.Leader {
		return 0, 0, errkind.New(errkind.NOT_LEADER, "raftkv.SubmitCommand", n.leaderHint())
	}

	data, err := encodeCommand(cmd)
	if err != nil {
		return 0, 0, errkind.Wrap(errkind.INVALID, "raftkv.SubmitCommand", "encode command", err)
	}

	f := n.raft.Apply(data, timeout)
	if err := f.Error(); err != nil {
		if err == raft.ErrNotLeader || err == raft.ErrLeadershipLost {
			return 0, 0, errkind.New(errkind.NOT_LEADER, "raftkv.SubmitCommand", n.leaderHint())
		}
		return 0, 0, errkind.Wrap(errkind.NETWORK, "raftkv.SubmitCommand", "apply", err)
	}

	if resp := f.Response(); resp != nil {
		if applyErr, ok := resp.(error); ok {
			return 0, 0, applyErr
		}
	}

	idx := f.Index()
	return idx, n.currentTerm(), nil
}

// WaitCommitted blocks until the FSM has applied at least index, or
// timeout elapses.
func (n *Node) WaitCommitted(index uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if n.raft.AppliedIndex() >= index {
			return nil
		}
		if time.Now().After(deadline) {
			return errkind.New(errkind.TIMEOUT, "raftkv.WaitCommitted", "commit index not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// EnsureLeader performs a round of heartbeats confirming this node is
// still leader before a linearizable read is served (§4.6).
func (n *Node) EnsureLeader() error {
	if n.raft.State() != raft.Leader {
		return errkind.New(errkind.NOT_LEADER, "raftkv.EnsureLeader", n.leaderHint())
	}
	if err := n.raft.VerifyLeader().Error(); err != nil {
		return errkind.New(errkind.NOT_LEADER, "raftkv.EnsureLeader", n.leaderHint())
	}
	return nil
}

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool { return n.raft.State() == raft.Leader }

// CommitIndex returns the index of the last applied log entry.
func (n *Node) CommitIndex() uint64 { return n.raft.AppliedIndex() }

// Term returns this node's current observed Raft term.
func (n *Node) Term() uint64 { return n.currentTerm() }

func (n *Node) currentTerm() uint64 {
	stats := n.raft.Stats()
	term, _ := strconv.ParseUint(stats["term"], 10, 64)
	return term
}

func (n *Node) leaderHint() string {
	_, id := n.raft.LeaderWithID()
	if id == "" {
		return "0"
	}
	return string(id)
}

// LeaderID returns the numeric node id of the current leader, or 0 if
// unknown.
func (n *Node) LeaderID() uint16 {
	hint := n.leaderHint()
	id, err := strconv.ParseUint(hint, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(id)
}

// AddVoter adds a voting member to the Raft cluster.
func (n *Node) AddVoter(nodeID uint16, addr string, timeout time.Duration) error {
	id := raft.ServerID(strconv.Itoa(int(nodeID)))
	return n.raft.AddVoter(id, raft.ServerAddress(addr), 0, timeout).Error()
}

// RemoveServer removes a server from the Raft cluster.
func (n *Node) RemoveServer(nodeID uint16, timeout time.Duration) error {
	id := raft.ServerID(strconv.Itoa(int(nodeID)))
	return n.raft.RemoveServer(id, 0, timeout).Error()
}

// LeaderCh notifies on leadership changes.
func (n *Node) LeaderCh() <-chan bool { return n.leaderCh }

// Close gracefully shuts down the Raft node and its stores.
func (n *Node) Close() error {
	if err := n.raft.Shutdown().Error(); err != nil {
		n.logger.Error("raft shutdown failed", "error", err)
	}

	if s, ok := n.stableStore.(*raftboltdb.BoltStore); ok {
		if err := s.Close(); err != nil {
			n.logger.Error("close stable store failed", "error", err)
		}
	}
	if s, ok := n.logStore.(*raftboltdb.BoltStore); ok {
		if err := s.Close(); err != nil {
			n.logger.Error("close log store failed", "error", err)
		}
	}
	if err := n.snapshotStore.Close(); err != nil {
		n.logger.Error("close snapshot store failed", "error", err)
	}
	if err := n.transport.Close(); err != nil {
		n.logger.Error("close transport failed", "error", err)
	}

	close(n.leaderCh)
	return nil
}

// hclogAdapter shims this module's logger.Logger into the hclog.Logger
// interface hashicorp/raft requires.
type hclogAdapter struct {
	logger logger.Logger
}

func (l *hclogAdapter) Log(level hclog.Level, msg string, args ...any) {
	switch level {
	case hclog.Trace, hclog.Debug:
		l.logger.Debug(msg, args...)
	case hclog.Warn:
		l.logger.Warn(msg, args...)
	case hclog.Error:
		l.logger.Error(msg, args...)
	default:
		l.logger.Info(msg, args...)
	}
}

func (l *hclogAdapter) Trace(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hclogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hclogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *hclogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *hclogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *hclogAdapter) IsTrace() bool { return false }
func (l *hclogAdapter) IsDebug() bool { return false }
func (l *hclogAdapter) IsInfo() bool  { return true }
func (l *hclogAdapter) IsWarn() bool  { return true }
func (l *hclogAdapter) IsError() bool { return true }

func (l *hclogAdapter) ImpliedArgs() []any { return nil }
func (l *hclogAdapter) With(args ...any) hclog.Logger {
	return &hclogAdapter{logger: l.logger.With(args...)}
}
func (l *hclogAdapter) Name() string                       { return "raft" }
func (l *hclogAdapter) Named(name string) hclog.Logger     { return l.With("component", name) }
func (l *hclogAdapter) ResetNamed(name string) hclog.Logger { return l.Named(name) }
func (l *hclogAdapter) SetLevel(level hclog.Level)          {}
func (l *hclogAdapter) GetLevel() hclog.Level               { return hclog.Info }
func (l *hclogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *stdlog.Logger {
	return nil
}
func (l *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return nil
}
