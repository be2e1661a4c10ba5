package commands

import (
	"github.com/spf13/cobra"

	"github.com/ddipass/deepseek-bedrock/cmd/dsdeploy/handlers"
)

// Detect returns the command that recommends tuning from the device inventory.
func Detect(envFile *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Recommend tuning parameters for the local devices",
		Long: `Inspect the Neuron devices on this host and recommend serving parameters.

The recommendation is recorded in <CONFIG_DIR>/recommended_params.json.
With --json only the recommendation is printed, as a single JSON object;
this is the form used by "dsdeploy --use-detected".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Detect(cmd.Context(), *envFile, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the recommendation as JSON")

	return cmd
}
