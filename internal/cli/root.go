package cli

import (
	"context"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config/config.yaml"

// NewRootCommand builds the simtrack command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "simtrack",
		Short:        "Track SIM card stock, assignments, and sales",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")

	root.AddCommand(
		newServeCommand(&configPath),
		newImportCommand(&configPath),
	)

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}
