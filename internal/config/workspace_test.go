package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureWorkspace(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.LogDir = filepath.Join(root, "logs")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.ConfigDir = filepath.Join(root, "configs")
	require.NoError(t, os.Mkdir(cfg.CacheDir, 0o700))

	require.NoError(t, cfg.EnsureWorkspace())
	require.NoError(t, cfg.EnsureWorkspace(), "idempotent")

	for _, dir := range []string{cfg.LogDir, cfg.CacheDir, cfg.ConfigDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, WorkspaceDirMode, info.Mode().Perm(), dir)
	}
}

func TestEnsureWorkspace_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.LogDir = filepath.Join(root, "logs")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.ConfigDir = filepath.Join(root, "configs")
	require.NoError(t, os.WriteFile(cfg.LogDir, nil, 0o644))

	err := cfg.EnsureWorkspace()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create")
}
