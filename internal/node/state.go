package node

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridiankv/meridian/internal/cluster"
	"github.com/meridiankv/meridian/internal/config"
	"github.com/meridiankv/meridian/internal/errkind"
	"github.com/meridiankv/meridian/internal/peerpool"
	"github.com/meridiankv/meridian/internal/raftkv"
	"github.com/meridiankv/meridian/internal/rpc"
	"github.com/meridiankv/meridian/internal/store"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
	"github.com/meridiankv/meridian/internal/telemetry/metric"
)

// cleanupInterval, metricsInterval, and syncInterval are the maintenance
// thread periods named in §4.8; syncInterval additionally drives the
// eventual-mode anti-entropy push of §4.5/§4.4.
const (
	cleanupInterval = 60 * time.Second
	metricsInterval = 10 * time.Second
	syncInterval    = 5 * time.Second

	bootstrapWindow = 5 * time.Second
	leaveTimeout    = 5 * time.Second
	raftOpTimeout   = 5 * time.Second
	syncCallTimeout = 5 * time.Second
	syncFanOut      = 3
)

// State owns every subsystem a running node allocates: cluster
// membership, the peer pool, the datastore, the optional Raft overlay,
// the RPC transports, and the metrics registry (§4.8).
type State struct {
	cfg          *config.Config
	logger       logger.Logger
	capabilities Capabilities

	membership *cluster.Membership
	peers      *peerpool.Pool
	channels   *peerpool.Channels
	datastore  *store.Datastore
	raft       *raftkv.Node

	metrics  *metric.Registry
	registry *rpc.Registry

	dataTransport    *rpc.Transport
	ingressTransport *rpc.Transport
	metricsServer    *http.Server

	startedAt   time.Time
	lastSyncMs  atomic.Int64
	stopCh      chan struct{}
	wg          sync.WaitGroup
	shutdown    atomic.Bool
	peerEventID int
}

// current is the process-wide service registry §4.8 asks NodeState to
// register itself in: one node runs per process, so a single pointer
// slot is enough.
var current atomic.Pointer[State]

// Current returns the process's running node State, or nil before
// New/Start has completed.
func Current() *State { return current.Load() }

// New allocates every subsystem from cfg but starts none of them:
// capability detection, the cluster view/peer pool/datastore (and Raft,
// if enabled), and the handler registry. Call Start to begin serving.
func New(cfg *config.Config, log logger.Logger) (*State, error) {
	caps := DetectCapabilities(cfg)

	membership, err := cluster.NewMembership(cfg)
	if err != nil {
		return nil, fmt.Errorf("node: create membership: %w", err)
	}

	ds := store.NewDatastore(cfg.Datastore.Capacity, cfg.Datastore.MaxKeyLen)

	metrics := metric.NewRegistry()

	s := &State{
		cfg:          cfg,
		logger:       log,
		capabilities: caps,
		membership:   membership,
		peers:        peerpool.New(),
		channels:     peerpool.NewChannels(),
		datastore:    ds,
		metrics:      metrics,
		registry:     rpc.NewRegistry(),
		stopCh:       make(chan struct{}),
	}

	if cfg.Raft.Enabled {
		raftCfg := raftkv.FromSection(cfg.NodeID, cfg.Raft.BindAddr, cfg.Raft, log)
		raftNode, err := raftkv.NewNode(raftCfg, ds)
		if err != nil {
			return nil, fmt.Errorf("node: create raft node: %w", err)
		}
		s.raft = raftNode
	}

	ds.SetChangeCallback(s.onDatastoreChange)
	s.registerHandlers()

	s.dataTransport = rpc.NewTransport(rpc.DefaultTransportConfig(cfg.Ports.DataAddr), rpc.ChannelData, s.registry)
	if caps.Ingress {
		s.ingressTransport = rpc.NewTransport(rpc.DefaultTransportConfig(cfg.Ports.IngressAddr), rpc.ChannelIngress, s.registry)
	}
	if cfg.Ports.MetricsAddr != "" {
		if err := metrics.Register(metric.NewUptimeCollector(time.Now())); err != nil {
			return nil, fmt.Errorf("node: register uptime collector: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metricsServer = &http.Server{Addr: cfg.Ports.MetricsAddr, Handler: mux}
	}

	return s, nil
}

// Start starts membership, the RPC transports, and the optional metrics
// server, then spawns the cleanup and metrics-updater maintenance
// threads. A failure at any step tears down everything already started.
func (s *State) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	s.lastSyncMs.Store(s.startedAt.UnixMilli())

	if err := s.membership.Start(ctx); err != nil {
		return fmt.Errorf("node: start membership: %w", err)
	}
	if err := s.dataTransport.Start(ctx); err != nil {
		s.membership.Leave(leaveTimeout)
		return fmt.Errorf("node: start data transport: %w", err)
	}
	if s.ingressTransport != nil {
		if err := s.ingressTransport.Start(ctx); err != nil {
			s.dataTransport.Shutdown(ctx)
			s.membership.Leave(leaveTimeout)
			return fmt.Errorf("node: start ingress transport: %w", err)
		}
	}
	if s.metricsServer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	peerEvents, peerEventID := s.membership.Bus.Subscribe(64)
	s.peerEventID = peerEventID

	s.wg.Add(4)
	go s.cleanupLoop()
	go s.metricsLoop()
	go s.peerEventLoop(peerEvents)
	go s.syncLoop()

	current.Store(s)
	s.logger.Info("node started", "node_id", s.cfg.NodeID, "capabilities", s.capabilities.Strings())
	return nil
}

// Bootstrap iterates configured seeds, joining via the first that
// accepts, and waits up to a short window for the view to populate.
func (s *State) Bootstrap() error {
	return s.membership.Bootstrap(s.cfg.Routers, bootstrapWindow)
}

// Shutdown sets the shutdown flag, issues a graceful LEAVE, joins the
// maintenance threads, then tears down every subsystem in reverse
// creation order.
func (s *State) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	current.CompareAndSwap(s, nil)

	if err := s.membership.Leave(leaveTimeout); err != nil {
		s.logger.Warn("membership leave failed", "error", err)
	}

	s.membership.Bus.Unsubscribe(s.peerEventID)
	close(s.stopCh)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("maintenance threads did not exit before context cancellation")
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	if s.ingressTransport != nil {
		if err := s.ingressTransport.Shutdown(ctx); err != nil {
			s.logger.Warn("ingress transport shutdown failed", "error", err)
		}
	}
	if err := s.dataTransport.Shutdown(ctx); err != nil {
		s.logger.Warn("data transport shutdown failed", "error", err)
	}
	if s.raft != nil {
		if err := s.raft.Close(); err != nil {
			s.logger.Warn("raft shutdown failed", "error", err)
		}
	}
	s.channels.CloseAll()

	s.logger.Info("node shut down", "node_id", s.cfg.NodeID)
	return nil
}

// Capabilities returns this node's detected capability set.
func (s *State) Capabilities() Capabilities { return s.capabilities }

// Datastore returns the node's eventual-mode datastore.
func (s *State) Datastore() *store.Datastore { return s.datastore }

// Raft returns the node's Raft overlay, or nil if disabled.
func (s *State) Raft() *raftkv.Node { return s.raft }

// peerEventLoop translates membership transitions into peer pool state
// so that peerpool.Pool always reflects the view the gossip engine has
// converged on, rather than requiring every caller to consult the View
// directly (§4.7).
func (s *State) peerEventLoop(events <-chan cluster.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.applyPeerEvent(ev)
		}
	}
}

func (s *State) applyPeerEvent(ev cluster.Event) {
	if ev.Member.NodeID == s.cfg.NodeID {
		return
	}

	switch ev.Type {
	case cluster.PeerLeft:
		s.peers.Remove(ev.Member.NodeID)
		s.channels.Drop(ev.Member.NodeID)
	case cluster.PeerFailed:
		s.peers.UpdateStatus(ev.Member.NodeID, cluster.Dead)
		s.channels.Drop(ev.Member.NodeID)
	case cluster.PeerSuspect:
		s.peers.UpdateStatus(ev.Member.NodeID, cluster.Suspect)
	case cluster.PeerJoined:
		s.peers.Add(peerpool.Peer{
			NodeID:     ev.Member.NodeID,
			IP:         ev.Member.IP,
			GossipPort: ev.Member.GossipPort,
			DataPort:   ev.Member.DataPort,
			Status:     ev.Member.Status,
			LastSeenMs: ev.Member.LastSeenMs,
		})
	case cluster.PeerUpdated:
		s.peers.UpdateStatus(ev.Member.NodeID, ev.Member.Status)
	}
}

func (s *State) onDatastoreChange(op store.ChangeOp, _ store.Record) {
	switch op {
	case store.OpSet:
		s.metrics.SetTotal.Inc()
	case store.OpUnset:
		s.metrics.UnsetTotal.Inc()
	}
}

func (s *State) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			freed := s.datastore.PurgeTombstones(s.cfg.Datastore.TombstoneTTL)
			if freed > 0 {
				s.logger.Debug("purged expired tombstones", "freed", freed)
			}
		}
	}
}

// syncLoop is the eventual-mode anti-entropy push of §4.5: every
// syncInterval it samples a handful of Alive peers and sends each the
// records this node has modified since the last round via
// DATASTORE_SYNC. Convergence is reached over repeated rounds across
// the cluster, not in a single push, since a DATASTORE_SYNC response
// carries only an ack/merged count, never the peer's own records back.
func (s *State) syncLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runSyncRound()
		}
	}
}

func (s *State) runSyncRound() {
	peers := s.peers.ListAlive()
	if len(peers) == 0 {
		return
	}

	since := s.lastSyncMs.Load()
	now := time.Now().UnixMilli()
	records := s.datastore.GetModifiedSince(since)
	s.lastSyncMs.Store(now)
	if len(records) == 0 {
		return
	}

	payload := store.SerializeRecords(records)
	for i, peer := range peers {
		if i >= syncFanOut {
			break
		}
		s.pushSync(peer, payload)
	}
}

// pushSync sends payload (serialized §4.5 records) to peer's DATA
// channel over its lazily-dialed rpc.Client, merging is the receiving
// node's responsibility; a failed push is logged and dropped rather
// than retried, matching §4.2's no-retry contract.
func (s *State) pushSync(peer peerpool.Peer, payload []byte) {
	client := s.channels.Get(peer)

	ctx, cancel := context.WithTimeout(context.Background(), syncCallTimeout)
	defer cancel()

	status, resp, err := client.Call(ctx, rpc.ChannelData, rpc.FuncDatastoreSync, payload, syncCallTimeout)
	if err != nil {
		s.logger.Debug("sync push failed", "peer", peer.NodeID, "error", err)
		return
	}
	if status != rpc.StatusSuccess || len(resp) < 5 {
		s.logger.Debug("sync push rejected", "peer", peer.NodeID, "status", status)
		return
	}

	merged := binary.BigEndian.Uint32(resp[1:])
	s.logger.Debug("sync push delivered", "peer", peer.NodeID, "bytes", len(payload), "merged", merged)
}

func (s *State) metricsLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.updateMetrics()
		}
	}
}

func (s *State) updateMetrics() {
	s.metrics.RecordsTotal.Set(float64(len(s.datastore.Keys())))
	s.metrics.BytesTotal.Set(float64(s.datastore.Bytes()))

	counts := map[cluster.Status]int{cluster.Alive: 0, cluster.Suspect: 0, cluster.Dead: 0}
	for _, m := range s.membership.View.Snapshot() {
		counts[m.Status]++
	}
	s.metrics.MembersByStatus.WithLabelValues(cluster.Alive.String()).Set(float64(counts[cluster.Alive]))
	s.metrics.MembersByStatus.WithLabelValues(cluster.Suspect.String()).Set(float64(counts[cluster.Suspect]))
	s.metrics.MembersByStatus.WithLabelValues(cluster.Dead.String()).Set(float64(counts[cluster.Dead]))

	if s.raft != nil {
		s.metrics.RaftTerm.Set(float64(s.raft.Term()))
		s.metrics.RaftCommitIndex.Set(float64(s.raft.CommitIndex()))
		if s.raft.IsLeader() {
			s.metrics.RaftIsLeader.Set(1)
		} else {
			s.metrics.RaftIsLeader.Set(0)
		}
	}
}

// requireRaft returns the Raft overlay or an INVALID error if this node
// was not started with Raft enabled, for RAFT_KV_*/RAFT_STATUS handlers.
func (s *State) requireRaft() (*raftkv.Node, error) {
	if s.raft == nil {
		return nil, errkind.New(errkind.INVALID, "node.requireRaft", "raft is not enabled on this node")
	}
	return s.raft, nil
}
