package config

import "time"

// Default configuration values.
const (
	DefaultGossipAddr  = "127.0.0.1:7946"
	DefaultDataAddr    = "127.0.0.1:7373"
	DefaultMetricsAddr = "127.0.0.1:9090"
	DefaultRaftAddr    = "127.0.0.1:7400"

	DefaultLogLevel = "info"

	DefaultGossipTickInterval = 200 * time.Millisecond
	DefaultGossipFanOut       = 3
	DefaultSuspectTimeout     = 2 * time.Second
	DefaultDeadTimeout        = 5 * time.Second
	DefaultClusterCapacity    = 256

	DefaultDatastoreCapacity = 16384
	DefaultMaxKeyLen         = 256
	DefaultMaxValueBytes     = 1 << 20 // 1 MiB
	DefaultTombstoneTTL      = 30 * time.Second

	DefaultRaftHeartbeatTimeout  = 1000 * time.Millisecond
	DefaultRaftElectionTimeout   = 1000 * time.Millisecond
	DefaultRaftCommitTimeout     = 50 * time.Millisecond
	DefaultRaftSnapshotThreshold = 8192
)

// Default returns the default node configuration. The ingress address is
// left empty: ingress is opt-in, matching §6's "unset ingress_addr disables
// the ingress endpoint" rule.
func Default() *Config {
	return &Config{
		NodeType: NodeTypeWorker,
		Ports: Ports{
			GossipAddr:  DefaultGossipAddr,
			DataAddr:    DefaultDataAddr,
			MetricsAddr: DefaultMetricsAddr,
		},
		LogLevel: DefaultLogLevel,
		Gossip: GossipSection{
			TickInterval:    DefaultGossipTickInterval,
			FanOut:          DefaultGossipFanOut,
			SuspectTimeout:  DefaultSuspectTimeout,
			DeadTimeout:     DefaultDeadTimeout,
			ClusterCapacity: DefaultClusterCapacity,
		},
		Datastore: DatastoreSection{
			Capacity:      DefaultDatastoreCapacity,
			MaxKeyLen:     DefaultMaxKeyLen,
			MaxValueBytes: DefaultMaxValueBytes,
			TombstoneTTL:  DefaultTombstoneTTL,
		},
		Raft: RaftSection{
			BindAddr:          DefaultRaftAddr,
			HeartbeatTimeout:  DefaultRaftHeartbeatTimeout,
			ElectionTimeout:   DefaultRaftElectionTimeout,
			CommitTimeout:     DefaultRaftCommitTimeout,
			SnapshotThreshold: DefaultRaftSnapshotThreshold,
		},
	}
}
