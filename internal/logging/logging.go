// Package logging builds the process logger: human-readable console output
// plus JSON lines in the log directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// FileName is the JSON log written under the log directory.
const FileName = "dsdeploy.log"

// Options configures New.
type Options struct {
	// Console receives human-readable output. Defaults to os.Stderr.
	Console io.Writer
	// LogDir, when set, also receives JSON lines in FileName.
	LogDir string
	Level  zerolog.Level
	// NoColor disables ANSI colours even on a terminal.
	NoColor bool
}

// New returns the logger and a closer for the log file.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	cw := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.DateTime,
		NoColor:    opts.NoColor || !isTerminal(console),
	}

	writers := []io.Writer{cw}
	var closer io.Closer = nopCloser{}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path := filepath.Join(opts.LogDir, FileName)
		// #nosec G304 - log directory comes from configuration
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		writers = append(writers, f)
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
