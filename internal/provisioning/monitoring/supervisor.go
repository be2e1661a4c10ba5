// Package monitoring brings up the Prometheus and Grafana stack with docker
// compose and runs the terminal monitor as a supervised task.
package monitoring

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/platform/process"
	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/util/naming"
	"github.com/ddipass/deepseek-bedrock/internal/util/netutil"
)

const phaseName = "monitoring"

// TaskStarter starts the auxiliary monitor.
type TaskStarter func(argv []string, opts process.Options) (provisioning.TaskHandle, error)

// StartProcess is the default TaskStarter.
func StartProcess(argv []string, opts process.Options) (provisioning.TaskHandle, error) {
	return process.Start(argv, opts)
}

// Supervisor is the monitoring phase.
type Supervisor struct {
	Runner  shell.Runner
	Dir     string
	Project string
	Ports   Ports
	// Settle bounds the wait for the dashboard port after "up".
	Settle time.Duration

	MonitorArgv []string
	MonitorLog  string
	StopGrace   time.Duration

	StartTask TaskStarter
	WaitPort  func(ctx context.Context, host string, port int, timeout time.Duration) error
}

// NewSupervisor creates the monitoring phase. self is the running
// executable, started as "self monitor --plain".
func NewSupervisor(cfg *config.Config, runner shell.Runner, self string) *Supervisor {
	return &Supervisor{
		Runner:  runner,
		Dir:     cfg.MonitoringDir,
		Project: naming.ComposeProject,
		Ports: Ports{
			Model:      cfg.ModelPort,
			Prometheus: cfg.PrometheusPort,
			Grafana:    cfg.GrafanaPort,
		},
		Settle:      cfg.SettleInterval,
		MonitorArgv: []string{self, "monitor", "--plain"},
		MonitorLog:  filepath.Join(cfg.LogDir, "monitor.log"),
		StopGrace:   cfg.Timeouts.StopGrace,
		StartTask:   StartProcess,
		WaitPort:    netutil.WaitForPort,
	}
}

// Name implements provisioning.Phase.
func (s *Supervisor) Name() string { return phaseName }

// Provision implements provisioning.Phase.
func (s *Supervisor) Provision(ctx *provisioning.Context) error {
	return s.Start(ctx, ctx.Session)
}

// Start brings the dashboard stack up from a clean state and spawns the
// monitor. Each resource registers its teardown once it is running.
func (s *Supervisor) Start(ctx *provisioning.Context, session *provisioning.Session) error {
	composePath, err := WriteFiles(s.Dir, s.Ports)
	if err != nil {
		return err
	}

	// Leftovers from an earlier run would hold the ports.
	if _, err := s.compose(ctx, composePath, "down", "--remove-orphans"); err != nil {
		ctx.Observer.Warn(err, "ignoring failure of initial compose down")
	}
	if _, err := s.compose(ctx, composePath, "up", "-d"); err != nil {
		return fmt.Errorf("failed to start monitoring stack: %w", err)
	}
	session.Acquire(provisioning.ResourceDashboard, s.Project, func(ctx context.Context) error {
		_, err := s.compose(ctx, composePath, "down", "--remove-orphans")
		return err
	})
	provisioning.LogOutcome(ctx.Observer, phaseName, "dashboard", s.Project, provisioning.NewlyCreated)

	if s.Settle > 0 {
		if err := s.WaitPort(ctx, "127.0.0.1", s.Ports.Grafana, s.Settle); err != nil {
			ctx.Observer.Warn(err, "dashboard not answering yet, continuing")
		}
	}

	task, err := s.StartTask(s.MonitorArgv, process.Options{LogPath: s.MonitorLog, StopGrace: s.StopGrace})
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	session.Monitor = task
	session.Acquire(provisioning.ResourceMonitor, "monitor", task.Stop)
	provisioning.LogOutcome(ctx.Observer, phaseName, "monitor", s.MonitorLog, provisioning.NewlyCreated)

	go s.watch(ctx, session, task)

	ctx.Observer.Printf("[%s] Prometheus http://localhost:%d, Grafana http://localhost:%d",
		phaseName, s.Ports.Prometheus, s.Ports.Grafana)
	return nil
}

// watch reports a monitor that exits while the deployment is running.
func (s *Supervisor) watch(ctx *provisioning.Context, session *provisioning.Session, task provisioning.TaskHandle) {
	select {
	case <-task.Done():
		if ctx.Err() == nil && session.State() < provisioning.StateShuttingDown {
			ctx.Observer.Printf("[%s] monitor exited; see %s", phaseName, s.MonitorLog)
		}
	case <-ctx.Done():
	}
}

func (s *Supervisor) compose(ctx context.Context, composePath string, args ...string) (shell.Result, error) {
	argv := append([]string{"compose", "-p", s.Project, "-f", composePath}, args...)
	return s.Runner.Run(ctx, "docker", argv...)
}
