package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, 180*time.Second, cfg.LockTimeout())
	require.Equal(t, 10*time.Second, cfg.DialTimeout())
	require.False(t, cfg.Quorum.Enabled)
}

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.toml")
	contents := `
listen = "0.0.0.0:9000"

[lock]
timeout_seconds = 30

[quorum]
enabled = true
min_peer_fraction = 0.67
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, 30*time.Second, cfg.LockTimeout())
	require.True(t, cfg.Quorum.Enabled)
	require.Equal(t, 0.67, cfg.Quorum.MinPeerFraction)
	// untouched sections keep their defaults
	require.Equal(t, 4, cfg.Worker.Count)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
