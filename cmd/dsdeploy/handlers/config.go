// Package handlers implements the CLI commands.
package handlers

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/logging"
	"github.com/ddipass/deepseek-bedrock/internal/platform/shell"
)

// Factory function variables shared by the handlers - can be replaced in tests.
var (
	// loadConfig builds the configuration from the environment and an
	// optional env file.
	loadConfig = func(envFile string) (*config.Config, error) {
		return config.Load(config.LoadOptions{EnvFile: envFile})
	}

	// newRunner creates the command runner for the host.
	newRunner = func() shell.Runner { return shell.NewExec() }

	// executable resolves the running binary, used to re-invoke subcommands.
	executable = os.Executable

	// stdout receives command output.
	stdout io.Writer = os.Stdout
)

// newLogger creates the deployment logger: console on stderr and JSON lines
// in the log directory.
func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Options{LogDir: cfg.LogDir, Level: zerolog.InfoLevel})
}
