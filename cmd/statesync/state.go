package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newStateCmd(flags *clientFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Fetch and print the server's global state",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := connectSession(cmd, flags, timeout)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return writeWire(cmd.OutOrStdout(), flags.output, session.Snapshot())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultConnectTimeout, "connect timeout")
	return cmd
}
