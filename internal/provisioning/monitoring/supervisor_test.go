package monitoring

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ddipass/deepseek-bedrock/internal/platform/process"
	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	tu "github.com/ddipass/deepseek-bedrock/internal/testing"
)

type fakeTask struct {
	mu      sync.Mutex
	argv    []string
	opts    process.Options
	stopped int
	done    chan struct{}
}

func (f *fakeTask) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	if f.stopped == 1 {
		close(f.done)
	}
	return nil
}

func (f *fakeTask) Done() <-chan struct{} { return f.done }

func newSupervisor(t *testing.T, runner *tu.FakeRunner) (*Supervisor, *fakeTask, *provisioning.Context) {
	t.Helper()
	cfg := tu.NewConfigBuilder(t.TempDir()).Build()
	pctx := tu.ProvisioningContext(t, cfg)
	task := &fakeTask{done: make(chan struct{})}

	s := NewSupervisor(cfg, runner, "/usr/local/bin/dsdeploy")
	s.StartTask = func(argv []string, opts process.Options) (provisioning.TaskHandle, error) {
		task.argv = argv
		task.opts = opts
		return task, nil
	}
	return s, task, pctx
}

func dockerRunner() *tu.FakeRunner {
	return tu.NewFakeRunner().
		On("docker compose", shell.Result{}, nil)
}

func TestStart_BringsUpStackAndMonitor(t *testing.T) {
	t.Parallel()
	runner := dockerRunner()
	s, task, pctx := newSupervisor(t, runner)

	require.NoError(t, s.Provision(pctx))

	compose := filepath.Join(s.Dir, ComposeFile)
	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "docker compose -p dsdeploy-monitoring -f "+compose+" down --remove-orphans", calls[0])
	assert.Equal(t, "docker compose -p dsdeploy-monitoring -f "+compose+" up -d", calls[1])

	assert.Equal(t, []string{"/usr/local/bin/dsdeploy", "monitor", "--plain"}, task.argv)
	assert.Equal(t, s.MonitorLog, task.opts.LogPath)
	assert.Same(t, provisioning.TaskHandle(task), pctx.Session.Monitor)
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceDashboard))
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceMonitor))
	assert.FileExists(t, filepath.Join(s.Dir, PrometheusFile))
}

func TestStart_InitialDownFailureIgnored(t *testing.T) {
	t.Parallel()
	runner := dockerRunner()
	s, _, pctx := newSupervisor(t, runner)
	runner.Fail("docker compose -p dsdeploy-monitoring -f "+filepath.Join(s.Dir, ComposeFile)+" down", 1, "no such project")

	require.NoError(t, s.Provision(pctx))
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceDashboard))
}

func TestStart_UpFailure(t *testing.T) {
	t.Parallel()
	runner := dockerRunner()
	s, task, pctx := newSupervisor(t, runner)
	runner.Fail("docker compose -p dsdeploy-monitoring -f "+filepath.Join(s.Dir, ComposeFile)+" up", 1, "port is already allocated")

	err := s.Provision(pctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is already allocated")
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceDashboard))
	assert.Nil(t, task.argv, "monitor not started")
}

func TestStart_MonitorFailureKeepsDashboardTeardown(t *testing.T) {
	t.Parallel()
	runner := dockerRunner()
	s, _, pctx := newSupervisor(t, runner)
	s.StartTask = func([]string, process.Options) (provisioning.TaskHandle, error) {
		return nil, errors.New("exec format error")
	}

	err := s.Provision(pctx)

	require.Error(t, err)
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceDashboard))
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceMonitor))
	require.Len(t, pctx.Session.Teardowns(), 1)
}

func TestStart_TeardownsStopMonitorThenStack(t *testing.T) {
	t.Parallel()
	runner := dockerRunner()
	s, task, pctx := newSupervisor(t, runner)
	require.NoError(t, s.Provision(pctx))

	require.NoError(t, pctx.Session.Advance(provisioning.StateShuttingDown))

	coordinator := &provisioning.Coordinator{Observer: pctx.Observer, StepTimeout: time.Second}
	assert.False(t, coordinator.Run(pctx.Session).HasErrors())

	assert.Equal(t, 1, task.stopped)
	calls := runner.Calls()
	assert.Contains(t, calls[len(calls)-1], "down --remove-orphans")
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceMonitor))
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceDashboard))
}

func TestStart_SettleWaitsForDashboard(t *testing.T) {
	t.Parallel()
	s, _, pctx := newSupervisor(t, dockerRunner())
	s.Settle = 50 * time.Millisecond
	var waited []int
	s.WaitPort = func(_ context.Context, _ string, port int, timeout time.Duration) error {
		waited = append(waited, port)
		assert.Equal(t, 50*time.Millisecond, timeout)
		return errors.New("timeout waiting for 127.0.0.1:3000")
	}

	require.NoError(t, s.Provision(pctx), "slow dashboard is not fatal")
	assert.Equal(t, []int{s.Ports.Grafana}, waited)
}

func TestWriteFiles_RendersAndPreserves(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ports := Ports{Model: 8001, Prometheus: 9091, Grafana: 3001}

	path, err := WriteFiles(dir, ports)
	require.NoError(t, err)

	var compose composeFile
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &compose))
	assert.Equal(t, []string{"9091:9090"}, compose.Services["prometheus"].Ports)
	assert.Equal(t, []string{"3001:3000"}, compose.Services["grafana"].Ports)

	var prom prometheusConfig
	data, err = os.ReadFile(filepath.Join(dir, PrometheusFile))
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &prom))
	require.Len(t, prom.ScrapeConfigs, 1)
	assert.Equal(t, []string{"host.docker.internal:8001"}, prom.ScrapeConfigs[0].StaticConfigs[0].Targets)

	custom := []byte("# edited\nservices: {}\n")
	require.NoError(t, os.WriteFile(path, custom, 0o644))
	_, err = WriteFiles(dir, ports)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, data)
}
