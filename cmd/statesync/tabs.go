package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/schema"
)

type tabRow struct {
	ID          schema.TabID `json:"id"`
	DisplayName string       `json:"displayName"`
	Active      bool         `json:"active"`
}

func newTabsCmd(flags *clientFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "List and edit project and chat tabs",
	}
	cmd.PersistentFlags().StringVarP(&kind, "kind", "k", string(schema.TabKindProject), "tab kind (project or chat)")

	cmd.AddCommand(newTabsListCmd(flags, &kind))
	cmd.AddCommand(newTabsCreateCmd(flags, &kind))
	cmd.AddCommand(newTabsUpdateCmd(flags, &kind))
	cmd.AddCommand(newTabsDeleteCmd(flags, &kind))
	cmd.AddCommand(newTabsActivateCmd(flags, &kind))
	cmd.AddCommand(newTabsTicketCmd(flags))
	return cmd
}

func parseKind(value string) (schema.TabKind, error) {
	kind := schema.TabKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown tab kind %q", value)
	}
	return kind, nil
}

func newTabsListCmd(flags *clientFlags, kindFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tabs in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(*kindFlag)
			if err != nil {
				return err
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			cache := session.Cache()
			active := syncstate.ActiveTabID(cache, kind)
			rows := make([]tabRow, 0)
			for _, id := range syncstate.OrderedTabIDs(cache, kind) {
				record, ok := syncstate.Tab(cache, kind, id)
				if !ok {
					continue
				}
				name, _ := record["displayName"].(string)
				rows = append(rows, tabRow{ID: id, DisplayName: name, Active: id == active})
			}
			return writeWire(cmd.OutOrStdout(), flags.output, rows)
		},
	}
}

func newTabsCreateCmd(flags *clientFlags, kindFlag *string) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "create [display-name]",
		Short: "Create a tab and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(*kindFlag)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			var id schema.TabID
			if strings.TrimSpace(from) != "" {
				id, err = session.Actions().CreateTabFromTemplate(cmd.Context(), kind, schema.TabID(from), name)
			} else {
				id, err = session.Actions().CreateTab(cmd.Context(), kind, name, nil)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "copy an existing tab")
	return cmd
}

func newTabsUpdateCmd(flags *clientFlags, kindFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update <tab-id> <field=value>...",
		Short: "Merge fields into a tab; values are parsed as JSON when possible",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(*kindFlag)
			if err != nil {
				return err
			}
			partial, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().UpdateTab(cmd.Context(), kind, schema.TabID(args[0]), partial)
		},
	}
}

func newTabsDeleteCmd(flags *clientFlags, kindFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tab-id>",
		Short: "Delete a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(*kindFlag)
			if err != nil {
				return err
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().DeleteTab(cmd.Context(), kind, schema.TabID(args[0]))
		},
	}
}

func newTabsActivateCmd(flags *clientFlags, kindFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <tab-id>",
		Short: "Make a tab the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(*kindFlag)
			if err != nil {
				return err
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().SetActiveTab(cmd.Context(), kind, schema.TabID(args[0]))
		},
	}
}

func newTabsTicketCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ticket <tab-id> [ticket-id]",
		Short: "Link a project tab to a ticket; omit the ticket to clear it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ticket *string
			if len(args) == 2 {
				ticket = &args[1]
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().SetProjectTabTicket(cmd.Context(), schema.TabID(args[0]), ticket)
		},
	}
}

// parseAssignments turns field=value pairs into a record. Values that parse
// as JSON keep their type; anything else is a string.
func parseAssignments(pairs []string) (schema.Record, error) {
	out := schema.Record{}
	for _, pair := range pairs {
		field, raw, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out[field] = value
	}
	return out, nil
}
