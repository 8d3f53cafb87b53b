package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("statesync command failed")
		return 1
	}
	return 0
}

// clientFlags are shared by every command that talks to a server.
type clientFlags struct {
	cfgPath   string
	serverURL string
	output    string
}

func newRootCmd() *cobra.Command {
	flags := &clientFlags{}
	root := &cobra.Command{
		Use:           "statesync",
		Short:         "Global state sync client for promptliano servers",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.cfgPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVarP(&flags.serverURL, "server", "s", "", "server origin, overrides the active saved server")
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", outputYAML, "output format (yaml or json)")

	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newStateCmd(flags))
	root.AddCommand(newTabsCmd(flags))
	root.AddCommand(newSettingsCmd(flags))
	root.AddCommand(newPromptsCmd(flags))
	root.AddCommand(newKeysCmd(flags))
	root.AddCommand(newMCPCmd(flags))
	root.AddCommand(newServersCmd(flags))
	root.AddCommand(newMockServerCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	root.AddCommand(newVersionCmd(flags))

	return root
}
