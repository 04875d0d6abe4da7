package init

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize stackpilot configuration files",
		Long: `Initialize stackpilot configuration files.

This command helps you create a default config.yaml with the region,
S3, tag and solution settings the other commands read.`,
	}

	cmd.AddCommand(NewConfigCmd())

	return cmd
}
