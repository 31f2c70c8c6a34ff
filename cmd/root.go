package cmd

import (
	"github.com/grovetools/packreload/cli"
	"github.com/grovetools/packreload/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the packreload command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"packreload",
		"Recompile packscript sources and reload them as they change",
	)
	info := version.GetInfo()
	cli.SetVersionTemplate(root, info)

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewStopCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(cli.NewVersionCommand("packreload", info))

	cli.SetStyledHelp(root)
	return root
}
