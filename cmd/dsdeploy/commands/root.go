// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing
// and flag binding. Command execution is delegated to handler functions in the
// handlers package.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddipass/deepseek-bedrock/cmd/dsdeploy/handlers"
)

// deploy is the root command action - can be replaced in tests.
var deploy = handlers.Deploy

// Root returns the root command for the dsdeploy CLI.
//
// Running the root command performs a deployment. Flags:
//
//	--use-detected: apply the detector's recommended tuning
//	--setup-only: stop after setup (see SETUP_ONLY_HALT) without serving
//	--env-file: read configuration from a KEY=VALUE file
func Root() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "dsdeploy",
		Short: "Deploy a large language model on an AWS Neuron host",
		Long: `Deploy a large language model on a single AWS Neuron host.

The deployment validates the host, installs dependencies, mounts an S3
bucket as model storage, downloads the model into it, resolves tuning
parameters, starts Prometheus and Grafana and then serves the model
until interrupted. Every resource acquired along the way is released
on exit.

Configuration is read from the environment (see --env-file).

Examples:
  # Deploy with the configured defaults
  dsdeploy

  # Deploy with detected tuning parameters
  dsdeploy --use-detected

  # Prepare the host only
  dsdeploy --setup-only`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.UseDetected, "use-detected", false, "Apply the detector's recommended tuning parameters")
	cmd.Flags().BoolVar(&opts.SetupOnly, "setup-only", false, "Stop after setup without starting the model service")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "Path to a KEY=VALUE configuration file")

	// Usage is silenced for runtime failures but still wanted for bad flags.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprint(c.ErrOrStderr(), c.UsageString())
		return err
	})

	cmd.AddCommand(Detect(&opts.EnvFile))
	cmd.AddCommand(Monitor(&opts.EnvFile))
	cmd.AddCommand(Check(&opts.EnvFile))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
