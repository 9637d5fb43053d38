package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "MESH_"

// Loader loads configuration from a file and environment overrides.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	loaded    bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix overrides the default environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// NewLoader creates a configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads defaults, then the file at path (if non-empty), then
// environment overrides, and unmarshals the result into a new Config.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if err := l.loadDefaults(cfg); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := l.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	uc := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := l.k.UnmarshalWithConf("", cfg, uc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDefaults seeds the koanf instance from the defaults-filled struct so
// that a partial file/env override layers on top of, rather than replaces,
// the defaults.
func (l *Loader) loadDefaults(cfg *Config) error {
	return l.k.Load(structProvider{cfg}, nil)
}

func (l *Loader) loadFile(path string) error {
	provider := file.Provider(path)
	if err := l.k.Load(provider, yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// loadEnv loads overrides of the form MESH_PORTS_DATA_ADDR.
func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		for _, section := range []string{"ports", "gossip", "datastore", "raft"} {
			if strings.HasPrefix(s, section+"_") {
				return section + "." + strings.TrimPrefix(s, section+"_")
			}
		}
		return s
	}

	provider := env.Provider(l.envPrefix, ".", transform)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	l.loaded = true
	return nil
}

// IsLoaded reports whether Load has completed at least once.
func (l *Loader) IsLoaded() bool {
	return l.loaded
}

// structProvider is a koanf provider that loads configuration from an
// already-materialized struct by round-tripping through koanf's own
// structs support, avoiding a second tag-mapping implementation.
type structProvider struct {
	cfg *Config
}

// ErrReadBytesNotSupported is returned when ReadBytes is called on the
// struct provider; koanf prefers Read() for in-memory providers.
var ErrReadBytesNotSupported = errors.New("config: ReadBytes not supported by struct provider, use Read() instead")

func (s structProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (s structProvider) Read() (map[string]any, error) {
	return structToMap(s.cfg), nil
}

// structToMap mirrors Config's koanf tags by hand; reflection-based koanf
// structs providers require a live koanf instance per struct, which is more
// machinery than a ten-field config object warrants.
func structToMap(cfg *Config) map[string]any {
	return map[string]any{
		"cluster_name": cfg.ClusterName,
		"node_id":      cfg.NodeID,
		"node_type":    string(cfg.NodeType),
		"log_level":    cfg.LogLevel,
		"routers":      cfg.Routers,
		"ports": map[string]any{
			"gossip_addr":  cfg.Ports.GossipAddr,
			"data_addr":    cfg.Ports.DataAddr,
			"ingress_addr": cfg.Ports.IngressAddr,
			"metrics_addr": cfg.Ports.MetricsAddr,
		},
		"gossip": map[string]any{
			"tick_interval":      cfg.Gossip.TickInterval,
			"fan_out":            cfg.Gossip.FanOut,
			"suspect_timeout_ms": cfg.Gossip.SuspectTimeout,
			"dead_timeout_ms":    cfg.Gossip.DeadTimeout,
			"cluster_capacity":   cfg.Gossip.ClusterCapacity,
		},
		"datastore": map[string]any{
			"capacity":        cfg.Datastore.Capacity,
			"max_key_len":     cfg.Datastore.MaxKeyLen,
			"max_value_bytes": cfg.Datastore.MaxValueBytes,
			"tombstone_ttl":   cfg.Datastore.TombstoneTTL,
		},
		"raft": map[string]any{
			"enabled":            cfg.Raft.Enabled,
			"bind_addr":          cfg.Raft.BindAddr,
			"data_dir":           cfg.Raft.DataDir,
			"bootstrap":          cfg.Raft.Bootstrap,
			"heartbeat_timeout":  cfg.Raft.HeartbeatTimeout,
			"election_timeout":  cfg.Raft.ElectionTimeout,
			"commit_timeout":     cfg.Raft.CommitTimeout,
			"snapshot_threshold": cfg.Raft.SnapshotThreshold,
		},
	}
}
