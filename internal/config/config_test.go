package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, 10, cfg.Concurrency)
	require.Equal(t, uint64(0), cfg.RateLimitMS)
	require.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	t.Setenv("FETCHCITE_CONCURRENCY", "500")
	t.Setenv("FETCHCITE_MAX_RETRIES", "-1")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Concurrency)
	require.Equal(t, 0, cfg.MaxRetries)
}

func TestLoadOverlaysYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "fetchcite.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("concurrency: 20\nmax_retries: 5\n"), 0o644))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Concurrency)
	require.Equal(t, 5, cfg.MaxRetries)

	t.Setenv("FETCHCITE_CONCURRENCY", "7")
	cfg, err = Load(yamlPath)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Concurrency, "env overrides file")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Concurrency)
}

func TestBandwidthLimitDefaultsToUnlimited(t *testing.T) {
	cfg := Default()
	require.Equal(t, 0, cfg.BandwidthLimit)
}

func TestBandwidthLimitEnvOverride(t *testing.T) {
	t.Setenv("FETCHCITE_BANDWIDTH_LIMIT", "2048")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2048, cfg.BandwidthLimit)
}

func TestStoreDirDefaultsUnderOutputDir(t *testing.T) {
	t.Setenv("FETCHCITE_OUTPUT_DIR", "/tmp/out")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/out", ".store"), cfg.StoreDir)
}
