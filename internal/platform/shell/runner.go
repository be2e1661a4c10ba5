// Package shell runs external commands on the local host.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands to completion.
type Runner interface {
	// Run executes name with args and waits for it. A non-zero exit status
	// is returned as a *CommandError together with the captured Result.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// LookPath resolves a binary on PATH.
	LookPath(name string) (string, error)
}

// CommandError is returned when a command cannot start or exits non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", e.Command)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exec runs commands with os/exec.
type Exec struct {
	// Env is appended to the inherited environment.
	Env []string
}

// NewExec returns a Runner backed by os/exec.
func NewExec() *Exec {
	return &Exec{}
}

// Run implements Runner.
func (r *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	// #nosec G204 - commands are assembled from configuration, never from remote input
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	cmdErr := &CommandError{Command: Join(name, args...), Stderr: res.Stderr, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		cmdErr.ExitCode = res.ExitCode
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.Err = errors.Join(err, ctxErr)
	}
	return res, cmdErr
}

// LookPath implements Runner.
func (r *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Privileged runs every command through "sudo -n" unless the process is
// already root.
type Privileged struct {
	Runner
	Root bool
}

// NewPrivileged wraps r, detecting root from the effective uid.
func NewPrivileged(r Runner) *Privileged {
	return &Privileged{Runner: r, Root: os.Geteuid() == 0}
}

// Run implements Runner.
func (p *Privileged) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if p.Root {
		return p.Runner.Run(ctx, name, args...)
	}
	return p.Runner.Run(ctx, "sudo", append([]string{"-n", name}, args...)...)
}

// Join renders a command line for logs and errors.
func Join(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
