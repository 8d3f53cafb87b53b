package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/statesync/internal/apiclient"
	"pkt.systems/statesync/internal/mcpprobe"
)

func newMCPCmd(flags *clientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage and probe project MCP server configs",
	}
	cmd.AddCommand(newMCPProbeCmd(flags))
	cmd.AddCommand(newMCPListCmd(flags))
	cmd.AddCommand(newMCPAddCmd(flags))
	cmd.AddCommand(newMCPRemoveCmd(flags))
	cmd.AddCommand(newMCPCheckCmd(flags))
	return cmd
}

type mcpTargetFlags struct {
	name    string
	command string
	args    []string
	env     []string
	url     string
}

func (f *mcpTargetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "server name")
	cmd.Flags().StringVar(&f.command, "command", "", "stdio server command")
	cmd.Flags().StringArrayVar(&f.args, "arg", nil, "stdio server argument (repeatable)")
	cmd.Flags().StringArrayVar(&f.env, "env", nil, "stdio server environment KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&f.url, "url", "", "streamable HTTP server url")
}

func (f *mcpTargetFlags) envMap() (map[string]string, error) {
	if len(f.env) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(f.env))
	for _, pair := range f.env {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func newMCPProbeCmd(flags *clientFlags) *cobra.Command {
	var target mcpTargetFlags
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to an MCP server and list its tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := target.envMap()
			if err != nil {
				return err
			}
			return runProbe(cmd, flags, timeout, mcpprobe.Config{
				Name:    target.name,
				Command: target.command,
				Args:    target.args,
				Env:     env,
				URL:     target.url,
			})
		},
	}
	target.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", mcpprobe.DefaultTimeout, "probe timeout")
	return cmd
}

func newMCPListCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's MCP server configs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			servers, err := session.API().ListMCPServers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, servers)
		},
	}
}

func newMCPAddCmd(flags *clientFlags) *cobra.Command {
	var target mcpTargetFlags
	var disabled bool
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add an MCP server config to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := target.envMap()
			if err != nil {
				return err
			}
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			created, err := session.API().CreateMCPServer(cmd.Context(), args[0], apiclient.MCPServerInput{
				Name:    target.name,
				Command: target.command,
				Args:    target.args,
				Env:     env,
				URL:     target.url,
				Enabled: !disabled,
			})
			if err != nil {
				return err
			}
			return writeWire(cmd.OutOrStdout(), flags.output, created)
		},
	}
	target.register(cmd)
	cmd.Flags().BoolVar(&disabled, "disabled", false, "store the config disabled")
	return cmd
}

func newMCPRemoveCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <project-id> <server-id>",
		Short: "Remove an MCP server config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()
			return session.API().DeleteMCPServer(cmd.Context(), args[0], args[1])
		},
	}
}

func newMCPCheckCmd(flags *clientFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check <project-id> <server-id>",
		Short: "Probe a stored MCP server config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			server, err := session.API().GetMCPServer(cmd.Context(), args[0], args[1])
			_ = session.Close()
			if err != nil {
				return err
			}
			return runProbe(cmd, flags, timeout, probeConfig(server))
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", mcpprobe.DefaultTimeout, "probe timeout")
	return cmd
}

func probeConfig(server apiclient.MCPServerConfig) mcpprobe.Config {
	return mcpprobe.Config{
		Name:    server.Name,
		Command: server.Command,
		Args:    server.Args,
		Env:     server.Env,
		URL:     server.URL,
	}
}

func runProbe(cmd *cobra.Command, flags *clientFlags, timeout time.Duration, cfg mcpprobe.Config) error {
	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := mcpprobe.Probe(ctx, cfg)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), flags.output, result)
}
