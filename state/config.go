package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Algorithm selects the shortest path strategy used by the gateway
type Algorithm string

const (
	Dijkstra    Algorithm = "dijkstra"
	BellmanFord Algorithm = "bellman_ford"
)

type BusKind string

const (
	BusMQTT   BusKind = "mqtt"
	BusRedis  BusKind = "redis"
	BusMemory BusKind = "memory" // in-process broker, only useful for simulations
)

type BusCfg struct {
	Kind     BusKind `yaml:"kind,omitempty"`
	Address  string  `yaml:"address,omitempty"`  // tcp://host:1883 for mqtt, host:6379 for redis
	Username string  `yaml:"username,omitempty"` // mqtt username or redis ACL user
	Password string  `yaml:"password,omitempty"`
	QoS      byte    `yaml:"qos,omitempty"`       // mqtt only
	ClientId string  `yaml:"client_id,omitempty"` // defaults to the node id
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id        NodeId    `yaml:"id"`                   // unique id for this node
	Gateway   NodeId    `yaml:"gateway"`              // the sink every application message is routed to
	MaxDegree int       `yaml:"max_degree,omitempty"` // maximum number of accepted links
	Algorithm Algorithm `yaml:"algorithm,omitempty"`  // dijkstra or bellman_ford, only used by the gateway
	Bus       BusCfg    `yaml:"bus"`

	AnnounceInterval time.Duration `yaml:"announce_interval,omitempty"`
	ReportInterval   time.Duration `yaml:"report_interval,omitempty"`
	SettleDelay      time.Duration `yaml:"settle_delay,omitempty"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout,omitempty"`

	NoAckHandshake   bool `yaml:"no_ack_handshake,omitempty"`    // admit links without waiting for the peer's ack
	NoResetOnMessage bool `yaml:"no_reset_on_message,omitempty"` // gateway keeps the topology after delivering a message

	SnapshotPath    string `yaml:"snapshot_path,omitempty"`    // where the gateway persists the global topology
	RestoreSnapshot bool   `yaml:"restore_snapshot,omitempty"` // gateway loads the snapshot on start
	MessageLog      string `yaml:"message_log,omitempty"`      // gateway appends delivered messages to this file

	LogPath       string `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
	LogMaxSizeMB  int    `yaml:"log_max_size_mb,omitempty"`
	LogMaxBackups int    `yaml:"log_max_backups,omitempty"`
	LogMaxAgeDays int    `yaml:"log_max_age_days,omitempty"`
	DebugAddr     string `yaml:"debug_addr,omitempty"`     // serves expvar and /debug/metrics
	ControlSocket string `yaml:"control_socket,omitempty"` // unix socket used by strand inspect
}

// ExpandLocalConfig fills every unset field with its default
func ExpandLocalConfig(cfg *LocalCfg) {
	if cfg.MaxDegree == 0 {
		cfg.MaxDegree = DefaultMaxDegree
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.Bus.Kind == "" {
		cfg.Bus.Kind = DefaultBusKind
	}
	if cfg.Bus.Kind == BusMQTT && cfg.Bus.Address == "" {
		cfg.Bus.Address = fmt.Sprintf("tcp://127.0.0.1:%d", DefaultMQTTPort)
	}
	if cfg.Bus.ClientId == "" {
		cfg.Bus.ClientId = string(cfg.Id)
	}
	if cfg.AnnounceInterval == 0 {
		cfg.AnnounceInterval = AnnounceInterval
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = ReportInterval
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = SettleDelay
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = ProbeTimeout
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = DefaultSnapshotPath
	}
	if cfg.LogMaxSizeMB == 0 {
		cfg.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.LogMaxBackups == 0 {
		cfg.LogMaxBackups = DefaultLogMaxBackups
	}
	if cfg.ControlSocket == "" {
		cfg.ControlSocket = filepath.Join(os.TempDir(), fmt.Sprintf("strand-%s.sock", cfg.Id))
	}
	if cfg.LogMaxAgeDays == 0 {
		cfg.LogMaxAgeDays = DefaultLogMaxAgeDays
	}
}
