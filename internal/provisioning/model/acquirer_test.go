package model

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddipass/deepseek-bedrock/internal/metrics"
	"github.com/ddipass/deepseek-bedrock/internal/platform/hfhub"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	tu "github.com/ddipass/deepseek-bedrock/internal/testing"
)

const repo = "deepseek-ai/tiny"

func snapshot() map[string]string {
	return map[string]string{
		"config.json":             `{"architectures":["DeepseekV3ForCausalLM"]}`,
		"model-00001.safetensors": "weights-1",
		"model-00002.safetensors": "weights-2",
		"tokenizer/vocab.json":    "vocab",
	}
}

func newAcquirer(t *testing.T, hub *tu.FakeHub) *Acquirer {
	t.Helper()
	return &Acquirer{
		Hub:        hfhub.NewClient(hub.URL(), ""),
		Revision:   "main",
		CacheDir:   filepath.Join(t.TempDir(), "cache"),
		Parallel:   2,
		Retries:    2,
		RetryDelay: time.Millisecond,
		Observer:   provisioning.NewLogObserver(tu.TestLogger(t)),
		Metrics:    metrics.NewRecorder(),
	}
}

func scratchDirs(t *testing.T, a *Acquirer) []string {
	t.Helper()
	dirs, err := filepath.Glob(filepath.Join(a.CacheDir, "snapshot-*"))
	require.NoError(t, err)
	return dirs
}

func siblings(t *testing.T, target string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func assertComplete(t *testing.T, target string) {
	t.Helper()
	for path, content := range snapshot() {
		data, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(path)))
		require.NoError(t, err, path)
		assert.Equal(t, content, string(data), path)
	}
	m, err := ReadMarker(target)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Matches(repo, tu.HubCommit))
	assert.Equal(t, len(snapshot()), m.Files)
}

func TestAcquire_CommitsCompleteSnapshot(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "mnt", "deepseek")

	path, err := a.Acquire(tu.TestContext(t), repo, target)

	require.NoError(t, err)
	assert.Equal(t, target, path)
	assert.False(t, a.Reused)
	assertComplete(t, target)
	assert.Empty(t, scratchDirs(t, a), "scratch removed after commit")
	assert.Equal(t, []string{"deepseek"}, siblings(t, target))
}

func TestAcquire_ReusesMatchingCopy(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")

	_, err := a.Acquire(tu.TestContext(t), repo, target)
	require.NoError(t, err)
	_, err = a.Acquire(tu.TestContext(t), repo, target)
	require.NoError(t, err)

	assert.True(t, a.Reused)
	assert.Equal(t, 1, hub.Downloads("config.json"))
}

func TestAcquire_ReplacesPreviousCopy(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "stale.bin"), []byte("old"), 0o644))
	require.NoError(t, writeMarker(target, Marker{Repo: repo, Revision: "older"}))

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	require.NoError(t, err)
	assertComplete(t, target)
	assert.NoFileExists(t, filepath.Join(target, "stale.bin"))
	assert.Equal(t, []string{"deepseek"}, siblings(t, target), "no staging or retired copies left")
}

func TestAcquire_DigestMismatchLeavesNothing(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot()).Corrupt("model-00002.safetensors")
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	var dlErr *provisioning.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "download", dlErr.Stage)
	assert.Contains(t, err.Error(), "digest mismatch")
	assert.NoDirExists(t, target)
	assert.Empty(t, scratchDirs(t, a))
}

func TestAcquire_TransientFailureRetried(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot()).FailDownload("config.json", 1)
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	require.NoError(t, err)
	assertComplete(t, target)
}

func TestAcquire_Unauthorized(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot()).RequireToken("hf_secret")
	a := newAcquirer(t, hub)

	_, err := a.Acquire(tu.TestContext(t), repo, filepath.Join(t.TempDir(), "deepseek"))

	var dlErr *provisioning.DownloadError
	require.ErrorAs(t, err, &dlErr)
	var apiErr *hfhub.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestAcquire_CommitFailureKeepsScratch(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	a.rename = func(string, string) error { return errors.New("input/output error") }
	target := filepath.Join(t.TempDir(), "deepseek")

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	var dlErr *provisioning.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "commit", dlErr.Stage)
	assert.NoDirExists(t, target)
	assert.Empty(t, siblings(t, target), "staging removed")

	scratch := scratchDirs(t, a)
	require.Len(t, scratch, 1)
	assert.FileExists(t, filepath.Join(scratch[0], MarkerName))
	assert.Contains(t, err.Error(), scratch[0])
}

func TestAcquire_CommitFailureRestoresPreviousCopy(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, writeMarker(target, Marker{Repo: repo, Revision: "older"}))

	calls := 0
	a.rename = func(oldpath, newpath string) error {
		calls++
		if calls == 3 {
			return errors.New("input/output error")
		}
		return os.Rename(oldpath, newpath)
	}

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	require.Error(t, err)
	m, err := ReadMarker(target)
	require.NoError(t, err)
	assert.True(t, m.Matches(repo, "older"), "previous complete copy is back in place")
	assert.Equal(t, []string{"deepseek"}, siblings(t, target))
}

func noRename(oldpath, newpath string) error {
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.ENOSYS}
}

func writeCompleteCopy(t *testing.T, dir, revision string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.bin"), []byte("old"), 0o644))
	require.NoError(t, writeMarker(dir, Marker{Repo: repo, Revision: revision}))
}

func TestAcquire_RenameUnsupportedCommitsRevisionDir(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")
	writeCompleteCopy(t, target, "older")

	renames := 0
	a.rename = func(oldpath, newpath string) error {
		renames++
		return noRename(oldpath, newpath)
	}
	copies := 0
	a.copyTree = func(src, dst string) error {
		copies++
		return copyTree(src, dst)
	}

	path, err := a.Acquire(tu.TestContext(t), repo, target)

	require.NoError(t, err)
	assert.Equal(t, target+"@"+short(tu.HubCommit), path)
	assertComplete(t, path)
	assert.Equal(t, 1, renames, "rename support checked once before copying")
	assert.Equal(t, 1, copies, "snapshot copied once")
	assert.Equal(t, []string{"deepseek@" + short(tu.HubCommit)}, siblings(t, target), "previous copy removed")
	assert.Empty(t, scratchDirs(t, a))
}

func TestAcquire_RenameUnsupportedCommitFailureKeepsPrevious(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	a.rename = noRename
	a.copyTree = func(src, dst string) error {
		require.NoError(t, os.MkdirAll(dst, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dst, "config.json"), []byte("{"), 0o644))
		return errors.New("no space left on device")
	}
	target := filepath.Join(t.TempDir(), "deepseek")
	writeCompleteCopy(t, target, "older")

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	var dlErr *provisioning.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "commit", dlErr.Stage)
	m, err := ReadMarker(target)
	require.NoError(t, err)
	assert.True(t, m.Matches(repo, "older"), "previous complete copy untouched")
	assert.FileExists(t, filepath.Join(target, "stale.bin"))
	assert.Equal(t, []string{"deepseek"}, siblings(t, target), "partial revision removed")
	assert.Len(t, scratchDirs(t, a), 1, "download kept for a retry")
}

func TestAcquire_RenameUnsupportedReusesRevisionDir(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	a.rename = noRename
	target := filepath.Join(t.TempDir(), "deepseek")

	first, err := a.Acquire(tu.TestContext(t), repo, target)
	require.NoError(t, err)
	second, err := a.Acquire(tu.TestContext(t), repo, target)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, a.Reused)
	assert.Equal(t, 1, hub.Downloads("config.json"))
}

func TestAcquire_RevisionLookupRetried(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot()).FailRevision(2)
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")

	_, err := a.Acquire(tu.TestContext(t), repo, target)

	require.NoError(t, err)
	assertComplete(t, target)
}

func TestAcquire_HubDownPinnedRevisionReusesLocalCopy(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	a.Revision = tu.HubCommit
	target := filepath.Join(t.TempDir(), "deepseek")
	_, err := a.Acquire(tu.TestContext(t), repo, target)
	require.NoError(t, err)

	hub.FailRevision(-1)
	path, err := a.Acquire(tu.TestContext(t), repo, target)

	require.NoError(t, err)
	assert.Equal(t, target, path)
	assert.True(t, a.Reused)
}

func TestAcquire_HubDownBranchRevisionFails(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	a := newAcquirer(t, hub)
	target := filepath.Join(t.TempDir(), "deepseek")
	_, err := a.Acquire(tu.TestContext(t), repo, target)
	require.NoError(t, err)

	hub.FailRevision(-1)
	_, err = a.Acquire(tu.TestContext(t), repo, target)

	var dlErr *provisioning.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.False(t, a.Reused, "a branch may have moved")
}

func TestSafeJoin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"config.json", false},
		{"nested/dir/file.bin", false},
		{"", true},
		{"/etc/passwd", true},
		{"../escape", true},
		{"a/../../escape", true},
		{"..", true},
		{MarkerName, true},
	}
	for _, tt := range tests {
		_, err := safeJoin("/base", tt.rel)
		if tt.wantErr {
			assert.Error(t, err, tt.rel)
		} else {
			assert.NoError(t, err, tt.rel)
		}
	}
}

func TestPhase_RequiresMount(t *testing.T) {
	t.Parallel()
	cfg := tu.NewConfigBuilder(t.TempDir()).Build()
	pctx := tu.ProvisioningContext(t, cfg)

	err := (&Phase{}).Provision(pctx)

	var dlErr *provisioning.DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Contains(t, err.Error(), "not mounted")
}

func TestPhase_SetsModelPath(t *testing.T) {
	t.Parallel()
	hub := tu.NewFakeHub(t, repo, snapshot())
	root := t.TempDir()
	cfg := tu.NewConfigBuilder(root).WithModel(repo, hub.URL()).Build()
	pctx := tu.ProvisioningContext(t, cfg)
	pctx.Session.MountPath = filepath.Join(root, "mnt")

	require.NoError(t, NewPhase(cfg.HFEndpoint, "").Provision(pctx))

	assert.Equal(t, filepath.Join(root, "mnt", cfg.ModelName), pctx.Session.ModelPath)
	assertComplete(t, pctx.Session.ModelPath)
}
