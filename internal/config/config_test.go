package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{
		"overrides": {"top.WIDTH": "16"},
		"lint": {"rules": {"parameter_chain_depth": "off"}}
	}`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Optimizer.DefaultWidth)
	assert.Equal(t, 2, cfg.Optimizer.Passes)
	assert.Equal(t, ".vlog_dataflow_cache", cfg.Analysis.Cache.Dir)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, "16", cfg.Overrides["top.WIDTH"])
	assert.False(t, cfg.IsRuleEnabled("parameter_chain_depth"))
	assert.True(t, cfg.IsRuleEnabled("unresolved_parameter"))
	assert.Equal(t, "warning", cfg.GetRuleSeverity("unresolved_parameter", "warning"))
}

func TestLoadFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"optimizer":`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadFindsRootConfig(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Optimizer.Passes = 3
	require.NoError(t, cfg.Save(filepath.Join(root, FileName)))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Optimizer.Passes)
}

func TestShouldIgnoreSignal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lint.IgnoreSignals = []string{"top.dbg_*", "unused_*"}

	assert.True(t, cfg.ShouldIgnoreSignal("top.dbg_count"))
	assert.True(t, cfg.ShouldIgnoreSignal("top.core.unused_a"))
	assert.False(t, cfg.ShouldIgnoreSignal("top.core.dbg_count"))
	assert.False(t, cfg.ShouldIgnoreSignal("top.WIDTH"))
}

func TestFingerprintTracksResolutionSettings(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Overrides["top.W"] = "8"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := DefaultConfig()
	c.Lint.IgnoreSignals = []string{"x"}
	assert.Equal(t, a.Fingerprint(), c.Fingerprint())

	d := DefaultConfig()
	d.Optimizer.DefaultWidth = 64
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}
