// Package main is the entry point for the dsdeploy CLI.
//
// dsdeploy turns a single AWS Neuron host into a serving endpoint for a
// large language model: it validates the host, installs dependencies,
// mounts an S3 bucket as model storage, downloads the model into it,
// resolves tuning parameters, starts Prometheus and Grafana, and runs the
// serving engine until interrupted. Every acquired resource is released on
// exit.
//
// Commands: (root) deploy, detect, monitor, check, version.
//
// For detailed usage information, run:
//
//	dsdeploy --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddipass/deepseek-bedrock/cmd/dsdeploy/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
