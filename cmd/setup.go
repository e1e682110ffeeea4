package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hpkotak/aiplatform/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure aip (first-time or reconfigure)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setup.Run(ioIn, ioOut)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
