package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/statesync/internal/selectors"
	"pkt.systems/statesync/schema"
)

func newSettingsCmd(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change shared application settings",
	}
	cmd.AddCommand(newSettingsShowCmd(flags))
	cmd.AddCommand(newSettingsSetCmd(flags))
	cmd.AddCommand(newSettingsThemeCmd(flags))
	cmd.AddCommand(newSettingsProviderCmd(flags))
	cmd.AddCommand(newSettingsLinkCmd(flags))
	return cmd
}

func newSettingsShowCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			settings, err := selectors.Settings(session.Cache())
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, settings)
		},
	}
}

func newSettingsSetCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field=value>...",
		Short: "Merge fields into the settings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := parseAssignments(args)
			if err != nil {
				return err
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().UpdateSettings(cmd.Context(), partial)
		},
	}
}

func newSettingsThemeCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "theme <light|dark>",
		Short: "Switch the shared theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().UpdateTheme(cmd.Context(), args[0])
		},
	}
}

func newSettingsProviderCmd(flags *clientFlags) *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "provider <provider> [model]",
		Short: "Set the AI provider globally or on one chat tab",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := ""
			if len(args) == 2 {
				model = args[1]
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().UpdateProvider(cmd.Context(), schema.TabID(tab), args[0], model)
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "chat tab id (default: settings)")
	return cmd
}

func newSettingsLinkCmd(flags *clientFlags) *cobra.Command {
	var link schema.ChatLinkSetting
	var project string
	cmd := &cobra.Command{
		Use:   "link <chat-tab-id>",
		Short: "Replace what a chat tab pulls from its linked project tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if project != "" {
				id := schema.TabID(project)
				link.LinkedProjectTabID = &id
			}
			session, err := connectSession(cmd, flags, 0)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.Actions().UpdateLinkSettings(cmd.Context(), schema.TabID(args[0]), link)
		},
	}
	cmd.Flags().StringVar(&project, "project-tab", "", "linked project tab id")
	cmd.Flags().BoolVar(&link.IncludeSelectedFiles, "files", false, "include selected files")
	cmd.Flags().BoolVar(&link.IncludePrompts, "prompts", false, "include selected prompts")
	cmd.Flags().BoolVar(&link.IncludeUserPrompt, "user-prompt", false, "include the user prompt")
	return cmd
}
