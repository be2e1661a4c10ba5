package model

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ddipass/deepseek-bedrock/internal/util/naming"
)

// commit publishes scratch and returns the committed path. Where the
// storage can rename directories the new copy is assembled in a staging
// sibling of target and swapped in. Elsewhere (mount-s3) it is copied into
// its own revision directory and older copies are removed only once it is
// complete.
func (a *Acquirer) commit(scratch, target, sha string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	ok, err := a.canRename(filepath.Dir(target))
	if err != nil {
		return "", err
	}
	if !ok {
		a.Observer.Printf("[model] directory rename unsupported at %s, committing by revision", filepath.Dir(target))
		return a.commitRevision(scratch, target, sha)
	}

	token := filepath.Base(scratch)
	staging := naming.StagingDir(target, token)
	if err := a.copySnapshot(scratch, staging); err != nil {
		_ = os.RemoveAll(staging)
		return "", fmt.Errorf("stage copy: %w", err)
	}
	if err := a.swap(staging, target, naming.RetiredDir(target, token)); err != nil {
		_ = os.RemoveAll(staging)
		return "", err
	}
	return target, nil
}

// canRename renames an empty directory inside dir to learn whether the
// storage supports directory renames.
func (a *Acquirer) canRename(dir string) (bool, error) {
	src, err := os.MkdirTemp(dir, ".dsdeploy-rename-*")
	if err != nil {
		return false, fmt.Errorf("check directory rename: %w", err)
	}
	dst := src + "-done"
	if err := a.renameDir(src, dst); err != nil {
		_ = os.Remove(src)
		if renameUnsupported(err) {
			return false, nil
		}
		return false, fmt.Errorf("check directory rename: %w", err)
	}
	_ = os.Remove(dst)
	return true, nil
}

func (a *Acquirer) renameDir(oldpath, newpath string) error {
	if a.rename != nil {
		return a.rename(oldpath, newpath)
	}
	return os.Rename(oldpath, newpath)
}

func (a *Acquirer) copySnapshot(src, dst string) error {
	if a.copyTree != nil {
		return a.copyTree(src, dst)
	}
	return copyTree(src, dst)
}

// swap renames staging to target, moving a previous copy aside first and
// removing it afterwards.
func (a *Acquirer) swap(staging, target, retired string) error {
	hadPrevious := false
	if _, err := os.Stat(target); err == nil {
		if err := a.renameDir(target, retired); err != nil {
			return fmt.Errorf("retire previous copy: %w", err)
		}
		hadPrevious = true
	}

	if err := a.renameDir(staging, target); err != nil {
		if hadPrevious {
			if rerr := a.renameDir(retired, target); rerr != nil {
				err = errors.Join(err, fmt.Errorf("restore previous copy: %w", rerr))
			}
		}
		return fmt.Errorf("swap in new copy: %w", err)
	}

	if hadPrevious {
		if err := os.RemoveAll(retired); err != nil {
			a.Observer.Warn(err, "failed to remove retired model copy")
		}
	}
	return nil
}

// commitRevision copies scratch into the revision directory of target,
// marker last. Previous copies at target or other revision directories
// stay untouched until the new one is complete.
func (a *Acquirer) commitRevision(scratch, target, sha string) (string, error) {
	dir := naming.RevisionDir(target, short(sha))
	// A directory without a matching marker is an interrupted commit.
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear incomplete copy: %w", err)
	}
	if err := a.copySnapshot(scratch, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("copy revision: %w", err)
	}

	for _, old := range previousCopies(target, dir) {
		if err := os.RemoveAll(old); err != nil {
			a.Observer.Warn(err, "failed to remove previous model copy "+old)
		}
	}
	return dir, nil
}

// previousCopies lists target and its revision directories other than keep.
func previousCopies(target, keep string) []string {
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		return nil
	}
	base := filepath.Base(target)
	var out []string
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(filepath.Dir(target), name)
		if path == keep {
			continue
		}
		if name == base || strings.HasPrefix(name, base+"@") {
			out = append(out, path)
		}
	}
	return out
}

func renameUnsupported(err error) bool {
	return errors.Is(err, syscall.ENOSYS) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.EPERM)
}

// copyTree copies src into dst, writing the completion marker last.
func copyTree(src, dst string) error {
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == MarkerName {
			return nil
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		return copyFile(path, out)
	})
	if err != nil {
		return err
	}

	marker := filepath.Join(src, MarkerName)
	if _, err := os.Stat(marker); err != nil {
		return fmt.Errorf("source has no completion marker: %w", err)
	}
	return copyFile(marker, filepath.Join(dst, MarkerName))
}

func copyFile(src, dst string) error {
	// #nosec G304 - both paths are managed directories
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	// #nosec G304
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
