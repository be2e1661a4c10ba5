package prerequisites

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Host resource minimums for serving the full model.
const (
	MinMemoryBytes   uint64 = 16 << 30
	MinFreeDiskBytes uint64 = 200 << 30
)

// Resource is one measured host resource.
type Resource struct {
	Name      string
	Available uint64
	Required  uint64
}

// OK reports whether the resource meets its minimum.
func (r Resource) OK() bool { return r.Available >= r.Required }

func (r Resource) String() string {
	return fmt.Sprintf("%s: %.1f GiB available, %.0f GiB required", r.Name, gib(r.Available), gib(r.Required))
}

// Memory reports total system memory.
func Memory() (Resource, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Resource{}, fmt.Errorf("failed to read system memory: %w", err)
	}
	// Totalram is counted in units of Unit bytes.
	total := uint64(info.Totalram) * uint64(info.Unit)
	return Resource{Name: "memory", Available: total, Required: MinMemoryBytes}, nil
}

// FreeDisk reports free space on the filesystem holding path. A path that
// does not exist yet is measured at its nearest existing ancestor.
func FreeDisk(path string) (Resource, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return Resource{}, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return Resource{}, fmt.Errorf("failed to stat filesystem of %s: %w", dir, err)
	}
	free := st.Bavail * uint64(st.Bsize)
	return Resource{Name: "disk " + dir, Available: free, Required: MinFreeDiskBytes}, nil
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		abs = parent
	}
}

func gib(b uint64) float64 { return float64(b) / (1 << 30) }
