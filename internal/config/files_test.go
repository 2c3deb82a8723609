package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"terms":[],"binds":[]}`), 0o644))
}

func TestResolveInputsDefaultPatterns(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "top.dataflow.json")
	nested := filepath.Join(root, "rtl", "core", "alu.dataflow.json")
	other := filepath.Join(root, "rtl", "notes.json")
	writeFile(t, top)
	writeFile(t, nested)
	writeFile(t, other)

	files, err := DefaultConfig().ResolveInputs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{nested, top}, files)
}

func TestResolveInputsExclude(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "rtl", "core.dataflow.json")
	skip := filepath.Join(root, "sim", "tb.dataflow.json")
	writeFile(t, keep)
	writeFile(t, skip)

	cfg := Config{
		Inputs:  []string{"**/*.dataflow.json"},
		Exclude: []string{"sim/*.dataflow.json"},
	}
	files, err := cfg.ResolveInputs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestMatchSuffix(t *testing.T) {
	assert.True(t, matchSuffix("a/b/c.dataflow.json", "*.dataflow.json"))
	assert.True(t, matchSuffix("a/b/c.dataflow.json", "b/*.dataflow.json"))
	assert.False(t, matchSuffix("a/b/c.json", "*.dataflow.json"))
}
