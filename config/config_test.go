package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdb/syncer"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "agentdb.yaml", `
data_dir: /tmp/agentdb-test
vector:
  enabled: true
  dimensions: 256
sync:
  enabled: true
  strategy: push
  conflict_resolution: latest
  sync_interval_seconds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/agentdb-test", cfg.DataDir)
	assert.Equal(t, 256, cfg.Vector.Dimensions)
	assert.Equal(t, 16, cfg.Vector.M)
	assert.Equal(t, 100, cfg.Vector.EfConstruction)

	sc := cfg.SyncerConfig()
	assert.True(t, sc.Enabled)
	assert.Equal(t, syncer.StrategyPush, sc.Strategy)
	assert.Equal(t, syncer.ResolutionLatest, sc.ConflictResolution)
	assert.Equal(t, time.Minute, sc.SyncInterval)

	vc := cfg.VectorStoreConfig()
	assert.Equal(t, 256, vc.Dimensions)
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "agentdb.json",
		`{"data_dir": "/tmp/agentdb-json", "sync": {"enabled": false, "strategy": "merge"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/agentdb-json", cfg.DataDir)
	assert.Equal(t, "merge", cfg.Sync.Strategy)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "agentdb.yaml", `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./agentdb", cfg.DataDir)
	assert.Equal(t, string(syncer.StrategyMerge), cfg.Sync.Strategy)
	assert.Equal(t, string(syncer.ResolutionLatest), cfg.Sync.ConflictResolution)
	assert.Equal(t, 300, cfg.Sync.SyncIntervalSeconds)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	path := writeConfig(t, "bad-strategy.yaml", `
sync:
  strategy: teleport
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown sync strategy")

	path = writeConfig(t, "bad-resolution.yaml", `
sync:
  conflict_resolution: coin-toss
`)
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown conflict resolution")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
