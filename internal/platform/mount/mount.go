// Package mount attaches S3 buckets as local filesystems with Mountpoint for S3.
package mount

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/moby/sys/mountinfo"

	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
)

// Binary is the Mountpoint for S3 client.
const Binary = "mount-s3"

// Mounter mounts and unmounts buckets.
type Mounter struct {
	// Runner runs mount-s3 as the invoking user.
	Runner shell.Runner
	// Privileged runs the unmount.
	Privileged shell.Runner
	// Lookup overrides the mount table query; defaults to mountinfo.Mounted.
	Lookup func(path string) (bool, error)
}

// NewMounter creates a Mounter backed by runner.
func NewMounter(runner shell.Runner) *Mounter {
	return &Mounter{Runner: runner, Privileged: shell.NewPrivileged(runner)}
}

// IsMounted reports whether path appears in the mount table.
func (m *Mounter) IsMounted(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	lookup := m.Lookup
	if lookup == nil {
		lookup = mountinfo.Mounted
	}
	mounted, err := lookup(abs)
	if err != nil {
		return false, fmt.Errorf("failed to read mount table for %s: %w", abs, err)
	}
	return mounted, nil
}

// Mount attaches bucket at path. The FUSE daemon attaches asynchronously, so
// success here does not mean the path is mounted yet.
func (m *Mounter) Mount(ctx context.Context, bucket, path, region string) error {
	args := []string{bucket, path, "--allow-delete", "--allow-overwrite"}
	if region != "" {
		args = append(args, "--region", region)
	}
	if _, err := m.Runner.Run(ctx, Binary, args...); err != nil {
		return fmt.Errorf("%s %s: %w", Binary, bucket, err)
	}
	return nil
}

// Unmount detaches path.
func (m *Mounter) Unmount(ctx context.Context, path string) error {
	if _, err := m.Privileged.Run(ctx, "umount", path); err != nil {
		return fmt.Errorf("umount %s: %w", path, err)
	}
	return nil
}
