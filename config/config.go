// Package config loads engine configuration from a YAML or JSON file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"agentdb/syncer"
	"agentdb/vector"
)

// Config is the top-level engine configuration.
type Config struct {
	DataDir string       `yaml:"data_dir" json:"data_dir"`
	Vector  VectorConfig `yaml:"vector,omitempty" json:"vector,omitempty"`
	Sync    SyncConfig   `yaml:"sync,omitempty" json:"sync,omitempty"`
}

// VectorConfig configures the vector store.
type VectorConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Path           string `yaml:"path,omitempty" json:"path,omitempty"` // persistence file
	Dimensions     int    `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	M              int    `yaml:"m,omitempty" json:"m,omitempty"`
	EfConstruction int    `yaml:"ef_construction,omitempty" json:"ef_construction,omitempty"`
}

// SyncConfig configures the sync manager.
type SyncConfig struct {
	Enabled             bool   `yaml:"enabled" json:"enabled"`
	Strategy            string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	ConflictResolution  string `yaml:"conflict_resolution,omitempty" json:"conflict_resolution,omitempty"`
	AutoSync            bool   `yaml:"auto_sync,omitempty" json:"auto_sync,omitempty"`
	SyncIntervalSeconds int    `yaml:"sync_interval_seconds,omitempty" json:"sync_interval_seconds,omitempty"`
}

// Load reads and validates a config file. YAML and JSON are both
// accepted; yaml.v3 parses either.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./agentdb"
	}
	if c.Vector.Enabled {
		if c.Vector.Dimensions == 0 {
			c.Vector.Dimensions = 128
		}
		if c.Vector.M == 0 {
			c.Vector.M = 16
		}
		if c.Vector.EfConstruction == 0 {
			c.Vector.EfConstruction = 100
		}
	}
	if c.Sync.Strategy == "" {
		c.Sync.Strategy = string(syncer.StrategyMerge)
	}
	if c.Sync.ConflictResolution == "" {
		c.Sync.ConflictResolution = string(syncer.ResolutionLatest)
	}
	if c.Sync.SyncIntervalSeconds == 0 {
		c.Sync.SyncIntervalSeconds = 300
	}
}

// Validate checks field values that would otherwise surface as runtime
// errors much later.
func (c *Config) Validate() error {
	if c.Vector.Enabled && c.Vector.Dimensions <= 0 {
		return fmt.Errorf("config: vector dimensions must be positive, got %d", c.Vector.Dimensions)
	}
	switch syncer.Strategy(c.Sync.Strategy) {
	case syncer.StrategyPush, syncer.StrategyPull, syncer.StrategyMerge, syncer.StrategyReplace:
	default:
		return fmt.Errorf("config: unknown sync strategy %q", c.Sync.Strategy)
	}
	switch syncer.Resolution(c.Sync.ConflictResolution) {
	case syncer.ResolutionLocal, syncer.ResolutionRemote, syncer.ResolutionLatest, syncer.ResolutionManual:
	default:
		return fmt.Errorf("config: unknown conflict resolution %q", c.Sync.ConflictResolution)
	}
	if c.Sync.SyncIntervalSeconds < 0 {
		return fmt.Errorf("config: sync interval must not be negative, got %d", c.Sync.SyncIntervalSeconds)
	}
	return nil
}

// SyncerConfig converts the sync section into the syncer's config type.
func (c *Config) SyncerConfig() syncer.Config {
	return syncer.Config{
		Enabled:            c.Sync.Enabled,
		Strategy:           syncer.Strategy(c.Sync.Strategy),
		ConflictResolution: syncer.Resolution(c.Sync.ConflictResolution),
		AutoSync:           c.Sync.AutoSync,
		SyncInterval:       time.Duration(c.Sync.SyncIntervalSeconds) * time.Second,
	}
}

// VectorStoreConfig converts the vector section into the vector store's
// config type.
func (c *Config) VectorStoreConfig() vector.Config {
	return vector.Config{
		Dimensions:     c.Vector.Dimensions,
		M:              c.Vector.M,
		EfConstruction: c.Vector.EfConstruction,
	}
}
