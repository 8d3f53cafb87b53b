package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/statesync/internal/version"
)

func newVersionCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), flags.output, version.Get())
		},
	}
}
