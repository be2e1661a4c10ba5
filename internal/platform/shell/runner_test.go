package shell

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	name string
	args []string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	r.name, r.args = name, args
	return Result{}, nil
}

func (r *recordingRunner) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }

func TestExec_RunSuccess(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	res, err := NewExec().Run(context.Background(), "sh", "-c", "echo out; echo err >&2")

	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExec_RunNonZeroExit(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	res, err := NewExec().Run(context.Background(), "sh", "-c", "echo first >&2; echo boom >&2; exit 3")

	require.Error(t, err)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, err.Error(), "exited with status 3: boom")
}

func TestExec_RunMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewExec().Run(context.Background(), "dsdeploy-definitely-missing-binary")

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestPrivileged(t *testing.T) {
	t.Parallel()

	inner := &recordingRunner{}
	_, _ = (&Privileged{Runner: inner}).Run(context.Background(), "apt-get", "install", "-y", "git")
	assert.Equal(t, "sudo", inner.name)
	assert.Equal(t, []string{"-n", "apt-get", "install", "-y", "git"}, inner.args)

	_, _ = (&Privileged{Runner: inner, Root: true}).Run(context.Background(), "umount", "/m")
	assert.Equal(t, "umount", inner.name)
	assert.Equal(t, []string{"/m"}, inner.args)
}

func TestJoin(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "docker", Join("docker"))
	assert.Equal(t, "docker compose up -d", Join("docker", "compose", "up", "-d"))
}
