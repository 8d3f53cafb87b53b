package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/statesync"
	"pkt.systems/statesync/internal/persist"
	"pkt.systems/statesync/schema"
)

type serverRow struct {
	schema.SavedServer
	Active bool `json:"active"`
}

func newServersCmd(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage saved servers",
	}
	cmd.AddCommand(newServersListCmd(flags))
	cmd.AddCommand(newServersAddCmd(flags))
	cmd.AddCommand(newServersRemoveCmd(flags))
	cmd.AddCommand(newServersUseCmd(flags))
	cmd.AddCommand(newServersCheckCmd(flags))
	return cmd
}

// openLocal opens the configured store and loads the local state. The
// returned close func closes the store.
func openLocal(cmd *cobra.Command, flags *clientFlags) (*persist.LocalState, func() error, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	logger := pslog.Ctx(cmd.Context())
	store, err := statesync.OpenStore(cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	local := persist.NewLocalState(store, logger)
	if err := local.Load(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return local, store.Close, nil
}

func newServersListCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			local, closeFn, err := openLocal(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()
			activeID := local.Settings().ActiveServerID
			rows := make([]serverRow, 0)
			for _, server := range local.Servers() {
				rows = append(rows, serverRow{SavedServer: server, Active: server.ID == activeID})
			}
			return writeWire(cmd.OutOrStdout(), flags.output, rows)
		},
	}
}

func newServersAddCmd(flags *clientFlags) *cobra.Command {
	var use bool
	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Save a server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, closeFn, err := openLocal(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()
			server, err := local.AddServer(args[0], args[1])
			if err != nil {
				return err
			}
			if use {
				if err := local.SetActiveServer(server.ID); err != nil {
					return err
				}
			}
			pslog.Ctx(cmd.Context()).Info("server saved", "server_id", server.ID, "url", server.URL, "active", use)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), server.ID)
			return err
		},
	}
	cmd.Flags().BoolVar(&use, "use", false, "make the new server active")
	return cmd
}

func newServersRemoveCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <server-id>",
		Short: "Forget a saved server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, closeFn, err := openLocal(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()
			return local.RemoveServer(schema.ServerID(args[0]))
		},
	}
}

func newServersUseCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "use [server-id]",
		Short: "Select the active server; no id selects the configured default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, closeFn, err := openLocal(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()
			var id schema.ServerID
			if len(args) == 1 {
				id = schema.ServerID(args[0])
			}
			return local.SetActiveServer(id)
		},
	}
}

func newServersCheckCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the selected server's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			base := session.Endpoints().HTTPBase
			if err := session.API().Health(cmd.Context()); err != nil {
				return fmt.Errorf("%s unhealthy: %w", base, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", base)
			return err
		},
	}
}
