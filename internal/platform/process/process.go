// Package process supervises long-running child processes: start with output
// redirected to a log file, observe exit, and stop with SIGTERM followed by
// SIGKILL after a grace period.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Options configures Start.
type Options struct {
	// LogPath receives stdout and stderr, appended. Empty discards output.
	LogPath string
	// Env is appended to the inherited environment.
	Env []string
	// StopGrace is the SIGTERM to SIGKILL delay used by Stop.
	StopGrace time.Duration
}

// Process is a started child running in its own process group.
type Process struct {
	cmd   *exec.Cmd
	grace time.Duration
	log   *os.File

	done     chan struct{}
	err      error
	stopOnce sync.Once
	stopped  bool
	mu       sync.Mutex
}

// Start launches argv. The child leads a new process group so that Stop
// reaches the workers it spawns.
func Start(argv []string, opts Options) (*Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("empty command")
	}

	// #nosec G204 - commands are assembled from configuration
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var logFile *os.File
	if opts.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log %s: %w", opts.LogPath, err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	p := &Process{cmd: cmd, grace: opts.StopGrace, log: logFile, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	if p.log != nil {
		_ = p.log.Close()
	}
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit error once Done is closed. Exits caused by Stop are
// not errors.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	return p.err
}

// Stop sends SIGTERM to the process group and SIGKILL once the grace period
// or ctx runs out. It waits for the exit and is safe to call repeatedly.
func (p *Process) Stop(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		err = p.stop(ctx)
	})
	return err
}

func (p *Process) stop(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	pgid := p.cmd.Process.Pid
	if err := signalGroup(pgid, unix.SIGTERM); err != nil {
		return err
	}

	grace := time.NewTimer(p.grace)
	defer grace.Stop()
	select {
	case <-p.done:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	if err := signalGroup(pgid, unix.SIGKILL); err != nil {
		return err
	}
	<-p.done
	return nil
}

func signalGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return fmt.Errorf("failed to send %s to process group %d: %w", unix.SignalName(sig), pgid, err)
}

// Tail returns up to n trailing lines of the file at path.
func Tail(path string, n int) string {
	// #nosec G304 - log paths come from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	const maxTail = 64 << 10
	if len(data) > maxTail {
		data = data[len(data)-maxTail:]
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
