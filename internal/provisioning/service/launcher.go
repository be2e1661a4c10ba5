// Package service launches and supervises the model serving process.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/platform/process"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/util/netutil"
	"github.com/ddipass/deepseek-bedrock/internal/util/retry"
)

const (
	phaseName = "service"
	tailLines = 40
)

// Launcher runs the serving command until it exits or is cancelled.
type Launcher struct {
	Command   []string
	ModelName string
	Device    string
	LogPath   string
	// Env is appended to the inherited environment of the process.
	Env []string

	StartupTimeout time.Duration
	StopGrace      time.Duration
	// HealthPath is polled on 127.0.0.1:<port> until it answers 2xx.
	HealthPath string

	Observer provisioning.Observer
	HTTP     *http.Client
}

// NewLauncher creates a launcher from configuration.
func NewLauncher(cfg *config.Config, observer provisioning.Observer) *Launcher {
	return &Launcher{
		Command:        cfg.ServeArgv(),
		ModelName:      cfg.ModelName,
		Device:         cfg.ServeDevice,
		LogPath:        filepath.Join(cfg.LogDir, "service.log"),
		StartupTimeout: cfg.Timeouts.ServiceStartup,
		StopGrace:      cfg.Timeouts.StopGrace,
		HealthPath:     "/health",
		Observer:       observer,
		HTTP:           &http.Client{Timeout: 5 * time.Second},
	}
}

// Args returns the full serving command line.
func (l *Launcher) Args(modelPath string, params provisioning.ParameterSet, port int) []string {
	argv := append([]string(nil), l.Command...)
	argv = append(argv,
		"--model", modelPath,
		"--served-model-name", l.ModelName,
		"--tensor-parallel-size", strconv.Itoa(params.TensorParallelSize),
		"--max-model-len", strconv.Itoa(params.MaxModelLen),
		"--max-num-seqs", strconv.Itoa(params.MaxNumSeqs),
		"--block-size", strconv.Itoa(params.BlockSize),
		"--port", strconv.Itoa(port),
	)
	if l.Device != "" {
		argv = append(argv, "--device", l.Device)
	}
	return argv
}

// Run starts the service, waits for readiness and then blocks until the
// process exits or ctx is cancelled. Cancellation stops the process and is
// a clean shutdown.
func (l *Launcher) Run(ctx context.Context, modelPath string, params provisioning.ParameterSet, port int) error {
	argv := l.Args(modelPath, params, port)
	launchErr := func(err error) error {
		return &provisioning.ServiceLaunchError{
			Command: strings.Join(l.Command, " "),
			Port:    port,
			Err:     err,
			LogTail: process.Tail(l.LogPath, tailLines),
		}
	}

	if err := netutil.PortAvailable(port); err != nil {
		return launchErr(err)
	}

	proc, err := process.Start(argv, process.Options{LogPath: l.LogPath, Env: l.Env, StopGrace: l.StopGrace})
	if err != nil {
		return launchErr(err)
	}
	l.Observer.Printf("[%s] started pid %d, logging to %s", phaseName, proc.Pid(), l.LogPath)

	// Stop on every return path; harmless once the process has exited.
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), l.StopGrace+5*time.Second)
		defer cancel()
		if err := proc.Stop(stopCtx); err != nil {
			l.Observer.Warn(err, "failed to stop serving process")
		}
	}

	if err := l.awaitReady(ctx, proc, port); err != nil {
		stop()
		if ctx.Err() != nil {
			l.Observer.Printf("[%s] cancelled during startup", phaseName)
			return nil
		}
		return launchErr(err)
	}
	l.Observer.Printf("[%s] ready on port %d", phaseName, port)

	select {
	case <-proc.Done():
		if err := proc.Err(); err != nil {
			return launchErr(fmt.Errorf("exited: %w", err))
		}
		l.Observer.Printf("[%s] exited", phaseName)
		return nil
	case <-ctx.Done():
		l.Observer.Printf("[%s] shutting down (grace %v)", phaseName, l.StopGrace)
		stop()
		return nil
	}
}

var errExited = errors.New("exited before becoming ready")

func (l *Launcher) awaitReady(ctx context.Context, proc *process.Process, port int) error {
	url := "http://127.0.0.1:" + strconv.Itoa(port) + l.HealthPath
	return retry.Until(ctx, l.StartupTimeout, func(ctx context.Context) (bool, error) {
		select {
		case <-proc.Done():
			if err := proc.Err(); err != nil {
				return false, fmt.Errorf("%w: %w", errExited, err)
			}
			return false, errExited
		default:
		}
		return l.healthy(ctx, url), nil
	}, retry.WithInitialDelay(200*time.Millisecond), retry.WithMaxDelay(2*time.Second))
}

func (l *Launcher) healthy(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := l.HTTP.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Phase is the foreground serving phase.
type Phase struct {
	Launcher *Launcher
}

// Name implements provisioning.ForegroundPhase.
func (p *Phase) Name() string { return phaseName }

// Serve implements provisioning.ForegroundPhase.
func (p *Phase) Serve(ctx *provisioning.Context) error {
	return p.Launcher.Run(ctx, ctx.Session.ModelPath, ctx.Session.Params, ctx.Config.ModelPort)
}
