package commands

import (
	"github.com/spf13/cobra"

	"github.com/ddipass/deepseek-bedrock/cmd/dsdeploy/handlers"
)

// Check returns the command for the host readiness report.
func Check(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether this host can run a deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Check(cmd.Context(), *envFile)
		},
	}
}
