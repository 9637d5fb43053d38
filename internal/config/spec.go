package config

import "time"

// NodeType is the capability class a node is configured with.
type NodeType string

const (
	NodeTypeRouter NodeType = "ROUTER"
	NodeTypeWorker NodeType = "WORKER"
)

// Ports holds the three network endpoints a node may expose.
type Ports struct {
	GossipAddr  string `koanf:"gossip_addr"`
	DataAddr    string `koanf:"data_addr"`
	IngressAddr string `koanf:"ingress_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
}

// Config is the root node configuration value object (§6).
type Config struct {
	ClusterName string   `koanf:"cluster_name"`
	NodeID      uint16   `koanf:"node_id"`
	NodeType    NodeType `koanf:"node_type"`
	Ports       Ports    `koanf:"ports"`
	Routers     []string `koanf:"routers"`
	LogLevel    string   `koanf:"log_level"`

	Gossip    GossipSection    `koanf:"gossip"`
	Datastore DatastoreSection `koanf:"datastore"`
	Raft      RaftSection      `koanf:"raft"`
}

// GossipSection tunes the membership engine. Not part of spec.md's minimal
// configuration object, but required to make §4.3/§4.4's timers concrete.
type GossipSection struct {
	TickInterval    time.Duration `koanf:"tick_interval"`
	FanOut          int           `koanf:"fan_out"`
	SuspectTimeout  time.Duration `koanf:"suspect_timeout_ms"`
	DeadTimeout     time.Duration `koanf:"dead_timeout_ms"`
	ClusterCapacity int           `koanf:"cluster_capacity"`
}

// DatastoreSection tunes the fixed-capacity slot array of §4.5.
type DatastoreSection struct {
	Capacity      int           `koanf:"capacity"`
	MaxKeyLen     int           `koanf:"max_key_len"`
	MaxValueBytes int           `koanf:"max_value_bytes"`
	TombstoneTTL  time.Duration `koanf:"tombstone_ttl"`
}

// RaftSection enables and tunes the linearizable overlay of §4.6. Like
// GossipSection, this is not part of spec.md's minimal configuration
// object; BindAddr gives hashicorp/raft's own TCP transport a socket
// distinct from ports.data_addr, since the two listen independently.
type RaftSection struct {
	Enabled           bool          `koanf:"enabled"`
	BindAddr          string        `koanf:"bind_addr"`
	DataDir           string        `koanf:"data_dir"`
	Bootstrap         bool          `koanf:"bootstrap"`
	HeartbeatTimeout  time.Duration `koanf:"heartbeat_timeout"`
	ElectionTimeout   time.Duration `koanf:"election_timeout"`
	CommitTimeout     time.Duration `koanf:"commit_timeout"`
	SnapshotThreshold uint64        `koanf:"snapshot_threshold"`
}

// HasIngress reports whether the ingress RPC channel should be constructed.
func (c *Config) HasIngress() bool {
	return c.Ports.IngressAddr != ""
}
