package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
)

// GossipConfig tunes the gossip engine's timers and fan-out (§4.4).
type GossipConfig struct {
	TickInterval   time.Duration
	FanOut         int
	SuspectTimeout time.Duration
	DeadTimeout    time.Duration
}

// Gossip drives ClusterView transitions via periodic digest exchange,
// suspicion timeouts, and refutation, using memberlist purely as SWIM
// transport (§4.4).
type Gossip struct {
	cfg   GossipConfig
	self  Member
	view  *View
	ml    *memberlist.Memberlist
	ready chan struct{}

	mu          sync.Mutex
	incarnation uint64
	peerNodes   map[string]*memberlist.Node

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewGossip creates a Gossip engine bound to view. self is the local
// node's own Member entry (inserted into view on Start).
func NewGossip(cfg GossipConfig, self Member, view *View) *Gossip {
	return &Gossip{
		cfg:         cfg,
		self:        self,
		view:        view,
		incarnation: self.Incarnation,
		peerNodes:   make(map[string]*memberlist.Node),
		stopCh:      make(chan struct{}),
	}
}

// Start binds the memberlist transport, inserts the local member into
// the view, and spawns the tick and suspicion-sweep loops.
func (g *Gossip) Start(ctx context.Context) error {
	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = strconv.Itoa(int(g.self.NodeID))
	mlConfig.BindAddr = g.self.IP
	mlConfig.BindPort = g.self.GossipPort
	mlConfig.LogOutput = logWriter{log: logger.FromContext(ctx)}
	mlConfig.Delegate = &gossipDelegate{gossip: g}
	mlConfig.Events = &gossipEventDelegate{gossip: g}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return fmt.Errorf("cluster: create memberlist: %w", err)
	}
	g.ml = ml

	if err := g.view.Add(g.self); err != nil {
		return fmt.Errorf("cluster: insert local member: %w", err)
	}

	g.wg.Add(2)
	go g.tickLoop(ctx)
	go g.suspicionLoop(ctx)

	return nil
}

// Join contacts seeds via memberlist and requests a full view push from
// the first one that accepts (§4.4 Join).
func (g *Gossip) Join(seeds []string) error {
	if len(seeds) == 0 {
		return nil
	}
	n, err := g.ml.Join(seeds)
	if err != nil {
		return fmt.Errorf("cluster: join seeds: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cluster: joined zero seeds")
	}

	env := envelope{Kind: envelopeJoinRequest, From: g.self.NodeID, Entries: []digestEntry{memberToDigest(g.self)}}
	data, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	for _, node := range g.ml.Members() {
		if node.Name == strconv.Itoa(int(g.self.NodeID)) {
			continue
		}
		if err := g.ml.SendReliable(node, data); err == nil {
			return nil
		}
	}
	return nil
}

// Leave marks the local member DEAD at the next incarnation and
// disseminates before shutting down the memberlist transport (§4.4
// Leave).
func (g *Gossip) Leave(timeout time.Duration) error {
	close(g.stopCh)
	g.wg.Wait()

	g.mu.Lock()
	g.incarnation++
	inc := g.incarnation
	g.mu.Unlock()

	_ = g.view.UpdateStatus(g.self.NodeID, Dead, inc)
	g.broadcast()

	if g.ml == nil {
		return nil
	}
	if err := g.ml.Leave(timeout); err != nil {
		return err
	}
	return g.ml.Shutdown()
}

func (g *Gossip) tickLoop(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Gossip) tick() {
	g.refuteIfNeeded()
	g.broadcast()
}

func (g *Gossip) broadcast() {
	peers := g.alivePeersExceptSelf()
	if len(peers) == 0 {
		return
	}
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })

	n := g.cfg.FanOut
	if n > len(peers) {
		n = len(peers)
	}

	entries := g.view.Snapshot()
	digestEntries := make([]digestEntry, 0, len(entries))
	for _, m := range entries {
		digestEntries = append(digestEntries, memberToDigest(m))
	}
	env := envelope{Kind: envelopePush, From: g.self.NodeID, Entries: digestEntries}
	data, err := encodeEnvelope(env)
	if err != nil {
		return
	}

	for _, peer := range peers[:n] {
		if node := g.lookupNode(peer.NodeID); node != nil {
			_ = g.ml.SendReliable(node, data)
		}
	}
}

func (g *Gossip) alivePeersExceptSelf() []Member {
	alive := g.view.ListAlive()
	out := make([]Member, 0, len(alive))
	for _, m := range alive {
		if m.NodeID != g.self.NodeID {
			out = append(out, m)
		}
	}
	return out
}

func (g *Gossip) lookupNode(nodeID uint16) *memberlist.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peerNodes[strconv.Itoa(int(nodeID))]
}

// refuteIfNeeded bumps the local incarnation and rebroadcasts ALIVE if
// gossip has taught us we are SUSPECT or DEAD (§4.4 Refutation).
func (g *Gossip) refuteIfNeeded() {
	current, err := g.view.Get(g.self.NodeID)
	if err != nil || current.Status == Alive {
		return
	}

	g.mu.Lock()
	g.incarnation++
	inc := g.incarnation
	g.mu.Unlock()

	_ = g.view.UpdateStatus(g.self.NodeID, Alive, inc)
}

func (g *Gossip) suspicionLoop(ctx context.Context) {
	defer g.wg.Done()

	interval := g.cfg.SuspectTimeout / 4
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.sweepSuspicion()
		}
	}
}

func (g *Gossip) sweepSuspicion() {
	now := nowMs()
	for _, m := range g.view.Snapshot() {
		if m.NodeID == g.self.NodeID {
			continue
		}
		age := time.Duration(now-m.LastSeenMs) * time.Millisecond
		switch {
		case m.Status == Alive && age >= g.cfg.SuspectTimeout:
			_ = g.view.UpdateStatus(m.NodeID, Suspect, m.Incarnation)
		// LastSeenMs was refreshed on the ALIVE->SUSPECT transition, so
		// age here counts from the moment of suspicion.
		case m.Status == Suspect && age >= g.cfg.DeadTimeout:
			_ = g.view.UpdateStatus(m.NodeID, Dead, m.Incarnation)
		}
	}
}

// onDigest merges an incoming envelope's entries into the view and, if
// it was a join request, replies with the full local view.
func (g *Gossip) onDigest(env envelope) {
	for _, e := range env.Entries {
		_ = g.view.Add(digestToMember(e))
	}

	if env.Kind != envelopeJoinRequest {
		return
	}

	node := g.lookupNode(env.From)
	if node == nil {
		return
	}

	snapshot := g.view.Snapshot()
	entries := make([]digestEntry, 0, len(snapshot))
	for _, m := range snapshot {
		entries = append(entries, memberToDigest(m))
	}
	reply := envelope{Kind: envelopePush, From: g.self.NodeID, Entries: entries}
	data, err := encodeEnvelope(reply)
	if err != nil {
		return
	}
	_ = g.ml.SendReliable(node, data)
}

func (g *Gossip) trackNode(node *memberlist.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.peerNodes[node.Name] = node
}

func (g *Gossip) untrackNode(node *memberlist.Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.peerNodes, node.Name)
}

// gossipDelegate implements memberlist.Delegate. Node metadata and
// broadcasts are unused: this module's own envelope protocol over
// SendReliable carries all state, not memberlist's own piggy-backed
// broadcast queue.
type gossipDelegate struct {
	gossip *Gossip
}

func (d *gossipDelegate) NodeMeta(limit int) []byte { return nil }

func (d *gossipDelegate) NotifyMsg(msg []byte) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		return
	}
	d.gossip.onDigest(env)
}

func (d *gossipDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *gossipDelegate) LocalState(join bool) []byte                { return nil }
func (d *gossipDelegate) MergeRemoteState(buf []byte, join bool)     {}

// gossipEventDelegate implements memberlist.EventDelegate, tracking
// *memberlist.Node pointers by node_id so the tick/digest loops can
// address SendReliable calls.
type gossipEventDelegate struct {
	gossip *Gossip
}

func (d *gossipEventDelegate) NotifyJoin(node *memberlist.Node)   { d.gossip.trackNode(node) }
func (d *gossipEventDelegate) NotifyLeave(node *memberlist.Node)  { d.gossip.untrackNode(node) }
func (d *gossipEventDelegate) NotifyUpdate(node *memberlist.Node) { d.gossip.trackNode(node) }

// logWriter adapts logger.Logger to io.Writer for memberlist's LogOutput.
type logWriter struct {
	log logger.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debug(string(p))
	return len(p), nil
}
