package config

import (
	"fmt"
	"os"
)

// WorkspaceDirMode is the permission used for the log, cache and config directories.
const WorkspaceDirMode os.FileMode = 0o755

// EnsureWorkspace creates the log, cache and config directories.
func (c *Config) EnsureWorkspace() error {
	for _, dir := range []string{c.LogDir, c.CacheDir, c.ConfigDir} {
		if err := os.MkdirAll(dir, WorkspaceDirMode); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		// MkdirAll leaves existing directories alone; normalise their mode.
		if err := os.Chmod(dir, WorkspaceDirMode); err != nil {
			return fmt.Errorf("failed to set permissions on %s: %w", dir, err)
		}
	}
	return nil
}
