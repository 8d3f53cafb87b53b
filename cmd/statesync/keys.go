package main

import (
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/statesync/internal/apiclient"
)

type keyRow struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

func maskKeys(keys []apiclient.ProviderKey) []keyRow {
	out := make([]keyRow, 0, len(keys))
	for _, key := range keys {
		out = append(out, keyRow{ID: key.ID, Provider: key.Provider, Key: key.Masked()})
	}
	return out
}

func newKeysCmd(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage AI provider API keys",
	}
	cmd.AddCommand(newKeysListCmd(flags))
	cmd.AddCommand(newKeysAddCmd(flags))
	cmd.AddCommand(newKeysDeleteCmd(flags))
	return cmd
}

func newKeysListCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			keys, err := session.API().ListKeys(cmd.Context())
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, maskKeys(keys))
		},
	}
}

func newKeysAddCmd(flags *clientFlags) *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "add <provider> [key]",
		Short: "Store a key for a provider",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := apiclient.CreateKeyInput{Provider: args[0]}
			switch {
			case fromStdin:
				value, err := readContent(cmd.InOrStdin(), "-")
				if err != nil {
					return err
				}
				in.Key = strings.TrimSpace(value)
			case len(args) == 2:
				in.Key = args[1]
			}
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			key, err := session.API().CreateKey(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, maskKeys([]apiclient.ProviderKey{key})[0])
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the key from stdin")
	return cmd
}

func newKeysDeleteCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.API().DeleteKey(cmd.Context(), args[0])
		},
	}
}
