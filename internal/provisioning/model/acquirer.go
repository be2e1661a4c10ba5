// Package model acquires a model snapshot from the Hugging Face Hub into the
// mounted model storage.
//
// Files are downloaded into a scratch directory under the cache, verified,
// and committed to the final location so that the final path only ever holds
// nothing, the previous complete snapshot, or the new complete snapshot.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/ddipass/deepseek-bedrock/internal/metrics"
	"github.com/ddipass/deepseek-bedrock/internal/platform/hfhub"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/util/async"
	"github.com/ddipass/deepseek-bedrock/internal/util/naming"
	"github.com/ddipass/deepseek-bedrock/internal/util/retry"
)

// Hub is the snapshot source. Implemented by hfhub.Client.
type Hub interface {
	Revision(ctx context.Context, repo, rev string) (string, error)
	ListFiles(ctx context.Context, repo, rev string) ([]hfhub.Entry, error)
	Download(ctx context.Context, repo, rev, path string) (io.ReadCloser, int64, error)
}

// Acquirer downloads and commits model snapshots.
type Acquirer struct {
	Hub      Hub
	Revision string
	CacheDir string
	// Parallel bounds concurrent file downloads.
	Parallel int

	Retries    int
	RetryDelay time.Duration

	Observer provisioning.Observer
	Metrics  *metrics.Recorder

	// Reused is set when the last Acquire found a matching complete copy.
	Reused bool

	rename   func(oldpath, newpath string) error
	copyTree func(src, dst string) error
}

// Acquire ensures target holds a complete snapshot of repo and returns it.
func (a *Acquirer) Acquire(ctx context.Context, repo, target string) (string, error) {
	a.Reused = false
	rev := a.Revision
	if rev == "" {
		rev = "main"
	}

	sha, err := a.resolve(ctx, repo, rev)
	if err != nil {
		// A pinned commit already on disk needs nothing from the Hub.
		if isCommit(rev) {
			if path, ok := a.complete(repo, target, rev); ok {
				a.Observer.Warn(err, "hub unreachable, using the complete local copy")
				a.Reused = true
				return path, nil
			}
		}
		return "", &provisioning.DownloadError{Repo: repo, Stage: "download", Err: err}
	}

	if path, ok := a.complete(repo, target, sha); ok {
		a.Reused = true
		a.Observer.Printf("[model] %s@%s already complete at %s", repo, short(sha), path)
		return path, nil
	}

	files, err := a.Hub.ListFiles(ctx, repo, sha)
	if err != nil {
		return "", &provisioning.DownloadError{Repo: repo, Stage: "download", Err: err}
	}
	if len(files) == 0 {
		return "", &provisioning.DownloadError{Repo: repo, Stage: "download", Err: fmt.Errorf("revision %s lists no files", short(sha))}
	}

	scratch, err := a.fetch(ctx, repo, sha, files)
	if err != nil {
		return "", &provisioning.DownloadError{Repo: repo, Stage: "download", Err: err}
	}

	path, err := a.commit(scratch, target, sha)
	if err != nil {
		return "", &provisioning.DownloadError{
			Repo:  repo,
			Stage: "commit",
			Err:   fmt.Errorf("%w (downloaded copy kept at %s)", err, scratch),
		}
	}
	if err := os.RemoveAll(scratch); err != nil {
		a.Observer.Warn(err, "failed to remove download scratch directory")
	}
	return path, nil
}

// resolve maps rev to a commit, retrying transient Hub failures.
func (a *Acquirer) resolve(ctx context.Context, repo, rev string) (string, error) {
	var sha string
	err := retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		s, err := a.Hub.Revision(ctx, repo, rev)
		if err != nil {
			if permanent(err) {
				return retry.Fatal(err)
			}
			return err
		}
		sha = s
		return nil
	},
		retry.WithMaxRetries(a.Retries),
		retry.WithInitialDelay(a.RetryDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			a.Observer.Warn(err, fmt.Sprintf("retrying revision lookup (attempt %d)", attempt+1))
		}),
	)
	return sha, err
}

// complete returns the committed copy of repo at sha, either at target or
// in its revision directory.
func (a *Acquirer) complete(repo, target, sha string) (string, bool) {
	for _, dir := range []string{target, naming.RevisionDir(target, short(sha))} {
		m, err := ReadMarker(dir)
		if err != nil {
			a.Observer.Warn(err, "ignoring unreadable completion marker")
			continue
		}
		if m.Matches(repo, sha) {
			return dir, true
		}
	}
	return "", false
}

// isCommit reports whether rev is a full commit hash rather than a branch
// or tag.
func isCommit(rev string) bool {
	if len(rev) != 40 {
		return false
	}
	for _, c := range rev {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// fetch downloads every file into a new scratch directory and writes the
// completion marker last. The scratch directory is removed on failure.
func (a *Acquirer) fetch(ctx context.Context, repo, sha string, files []hfhub.Entry) (string, error) {
	if err := os.MkdirAll(a.CacheDir, 0o755); err != nil {
		return "", err
	}
	scratch, err := os.MkdirTemp(a.CacheDir, "snapshot-*")
	if err != nil {
		return "", err
	}

	var total atomic.Int64
	var done atomic.Int32
	tasks := make([]async.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, async.Task{
			Name: f.Path,
			Func: func(ctx context.Context) error {
				n, err := a.fetchFile(ctx, repo, sha, f, scratch)
				if err != nil {
					return err
				}
				total.Add(n)
				a.Metrics.AddDownloadBytes(n)
				a.Observer.Printf("[model] fetched %s (%d/%d)", f.Path, done.Add(1), len(files))
				return nil
			},
		})
	}

	if err := async.RunParallel(ctx, tasks, a.Parallel); err != nil {
		_ = os.RemoveAll(scratch)
		return "", err
	}

	marker := Marker{Repo: repo, Revision: sha, Files: len(files), Bytes: total.Load(), CompletedAt: time.Now().UTC()}
	if err := writeMarker(scratch, marker); err != nil {
		_ = os.RemoveAll(scratch)
		return "", err
	}
	return scratch, nil
}

func (a *Acquirer) fetchFile(ctx context.Context, repo, sha string, f hfhub.Entry, dir string) (int64, error) {
	dest, err := safeJoin(dir, f.Path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	var written int64
	err = retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		n, err := a.download(ctx, repo, sha, f, dest)
		if err != nil {
			if permanent(err) {
				return retry.Fatal(err)
			}
			return err
		}
		written = n
		return nil
	},
		retry.WithMaxRetries(a.Retries),
		retry.WithInitialDelay(a.RetryDelay),
		retry.WithOnRetry(func(attempt int, err error) {
			a.Observer.Warn(err, fmt.Sprintf("retrying %s (attempt %d)", f.Path, attempt+1))
		}),
	)
	return written, err
}

func (a *Acquirer) download(ctx context.Context, repo, sha string, f hfhub.Entry, dest string) (int64, error) {
	body, _, err := a.Hub.Download(ctx, repo, sha, f.Path)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	// #nosec G304 - dest is confined to the scratch directory by safeJoin
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	expected, verify := f.Digest()
	var w io.Writer = out
	var digester digest.Digester
	if verify {
		digester = expected.Algorithm().Digester()
		w = io.MultiWriter(out, digester.Hash())
	}

	n, err := io.Copy(w, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if verify && digester.Digest() != expected {
		return 0, fmt.Errorf("%s: digest mismatch: got %s, want %s", f.Path, digester.Digest(), expected)
	}
	if f.LFS == nil && f.Size > 0 && n != f.Size {
		return 0, fmt.Errorf("%s: size mismatch: got %d bytes, want %d", f.Path, n, f.Size)
	}
	return n, nil
}

// permanent reports hub errors that retrying cannot fix.
func permanent(err error) bool {
	var apiErr *hfhub.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}

// safeJoin joins a repository path under dir, rejecting paths that would
// escape it.
func safeJoin(dir, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("unsafe file path %q", rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe file path %q", rel)
	}
	if filepath.Base(clean) == MarkerName {
		return "", fmt.Errorf("file path %q collides with the completion marker", rel)
	}
	return filepath.Join(dir, clean), nil
}

func short(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
