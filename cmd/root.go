package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/tunnelkeeper/cli"
)

// NewRootCmd assembles the tunnelkeeper command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"tunnelkeeper",
		"Keep SSH tunnel client sessions running and connected",
	)

	root.AddCommand(
		NewRunCmd(),
		NewStopCmd(),
		NewStatusCmd(),
		NewCheckCmd(),
		NewLogsCmd(),
		NewConfigCmd(),
		NewPathsCmd(),
		cli.NewVersionCommand("tunnelkeeper"),
	)
	return root
}
