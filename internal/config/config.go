// Package config loads coordinator-level tunables from a TOML file via
// github.com/BurntSushi/toml, the same library the teacher's own root
// go.mod carries (SPEC_FULL.md's AMBIENT STACK). Nothing here decodes a
// user-facing CLI command into an input dictionary — that remains out of
// scope per spec.md §1; this package only loads the coordinator process's
// own operating parameters.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the coordinator process's full set of operating tunables.
type Config struct {
	Listen    string          `toml:"listen"`
	Worker    WorkerConfig    `toml:"worker"`
	Lock      LockConfig      `toml:"lock"`
	RPC       RPCConfig       `toml:"rpc"`
	Quorum    QuorumConfig    `toml:"quorum"`
	Logging   LoggingConfig   `toml:"logging"`
}

// WorkerConfig controls internal/task's Runtime pool.
type WorkerConfig struct {
	Count     int `toml:"count"`
	QueueSize int `toml:"queue_size"`
}

// LockConfig controls internal/lockservice.
type LockConfig struct {
	// TimeoutSeconds is the auto-release duration for newly acquired
	// locks. Defaults to 180s per spec.md §9's resolved open question.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// RPCConfig controls internal/transport/grpcclient dialing.
type RPCConfig struct {
	DialTimeoutSeconds int `toml:"dial_timeout_seconds"`
	MaxInFlightPerPhase int64 `toml:"max_in_flight_per_phase"`
}

// QuorumConfig controls internal/dispatch's optional QuorumPolicy, the
// SPEC_FULL.md supplemented feature grounded on glusterd-server-quorum.c.
type QuorumConfig struct {
	Enabled         bool    `toml:"enabled"`
	MinPeerFraction float64 `toml:"min_peer_fraction"`
}

// LoggingConfig controls internal/logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Default returns a Config populated with every documented default.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:24007",
		Worker: WorkerConfig{Count: 4, QueueSize: 256},
		Lock:   LockConfig{TimeoutSeconds: 180},
		RPC:    RPCConfig{DialTimeoutSeconds: 10, MaxInFlightPerPhase: 32},
		Quorum: QuorumConfig{Enabled: false, MinPeerFraction: 0.5},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and decodes a TOML file at path, starting from Default() so
// unset fields keep their documented default rather than zero values.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %q: %w", path, err)
	}
	return cfg, nil
}

// LockTimeout returns the configured lock auto-release duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.Lock.TimeoutSeconds) * time.Second
}

// DialTimeout returns the configured RPC dial timeout.
func (c Config) DialTimeout() time.Duration {
	return time.Duration(c.RPC.DialTimeoutSeconds) * time.Second
}
