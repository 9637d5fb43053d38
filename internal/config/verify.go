package config

import (
	"errors"
	"fmt"
)

// Verify validates structural invariants of the configuration that the
// loader cannot enforce through struct tags alone.
func Verify(cfg *Config) error {
	if cfg.ClusterName == "" {
		return errors.New("cluster_name is required")
	}
	if cfg.NodeID == 0 {
		return errors.New("node_id must be nonzero")
	}
	if cfg.NodeType != NodeTypeRouter && cfg.NodeType != NodeTypeWorker {
		return fmt.Errorf("node_type must be ROUTER or WORKER, got %q", cfg.NodeType)
	}
	if cfg.Ports.GossipAddr == "" {
		return errors.New("ports.gossip_addr is required")
	}
	if cfg.Ports.DataAddr == "" {
		return errors.New("ports.data_addr is required")
	}

	if cfg.Gossip.ClusterCapacity < 1 {
		return errors.New("gossip.cluster_capacity must be at least 1")
	}
	if cfg.Gossip.FanOut < 1 {
		return errors.New("gossip.fan_out must be at least 1")
	}
	if cfg.Gossip.DeadTimeout <= cfg.Gossip.SuspectTimeout {
		return errors.New("gossip.dead_timeout_ms must exceed gossip.suspect_timeout_ms")
	}

	if cfg.Datastore.Capacity < 1 {
		return errors.New("datastore.capacity must be at least 1")
	}
	if cfg.Datastore.MaxValueBytes <= 0 || cfg.Datastore.MaxValueBytes > 1<<20 {
		return errors.New("datastore.max_value_bytes must be in (0, 1MiB]")
	}

	if cfg.Raft.Enabled && cfg.Raft.DataDir == "" {
		return errors.New("raft.data_dir is required when raft.enabled is true")
	}
	if cfg.Raft.Enabled && cfg.Raft.BindAddr == "" {
		return errors.New("raft.bind_addr is required when raft.enabled is true")
	}

	return nil
}
