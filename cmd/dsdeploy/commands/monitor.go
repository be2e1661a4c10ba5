package commands

import (
	"github.com/spf13/cobra"

	"github.com/ddipass/deepseek-bedrock/cmd/dsdeploy/handlers"
)

// Monitor returns the command for the live deployment monitor.
//
// Optional flags:
//
//	--plain: log samples as lines instead of the dashboard
func Monitor(envFile *string) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch devices and the model service",
		Long: `Watch device memory and serving metrics and suggest tuning changes.

The dashboard is shown when stdout is a terminal. Otherwise, or with
--plain, each sample is logged as one line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Monitor(cmd.Context(), *envFile, plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Log samples instead of showing the dashboard")

	return cmd
}
