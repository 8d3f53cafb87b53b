package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/mockserver"
	"pkt.systems/statesync/schema"
)

func newMockServerCmd(flags *clientFlags) *cobra.Command {
	var addr string
	var basePath string
	var stateFile string
	var broadcastEvery time.Duration
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a development sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			serverCfg := mockserver.Config{
				Addr:        cfg.Mock.Addr,
				BasePath:    cfg.Mock.BasePath,
				HistorySize: cfg.Mock.HistorySize,
			}
			if cmd.Flags().Changed("addr") {
				serverCfg.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				serverCfg.BasePath = basePath
			}
			if stateFile != "" {
				initial, err := readInitialState(stateFile)
				if err != nil {
					return err
				}
				serverCfg.Initial = &initial
			}
			srv, err := mockserver.New(serverCfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return mockserver.ListenAndServe(ctx, serverCfg.Addr, srv.Handler())
			})
			if broadcastEvery > 0 {
				g.Go(func() error {
					return broadcastLoop(ctx, srv, broadcastEvery)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "mount prefix (default from config)")
	cmd.Flags().StringVar(&stateFile, "state", "", "JSON file with the initial global state")
	cmd.Flags().DurationVar(&broadcastEvery, "broadcast-every", 0, "broadcast a state_update on this interval")
	return cmd
}

func broadcastLoop(ctx context.Context, srv *mockserver.Server, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := srv.BroadcastState(); err != nil {
				return err
			}
		}
	}
}

func readInitialState(path string) (schema.GlobalState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.GlobalState{}, err
	}
	var state schema.GlobalState
	if err := json.Unmarshal(data, &state); err != nil {
		return schema.GlobalState{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := schema.Validate(schema.InitialState{Data: state}); err != nil {
		return schema.GlobalState{}, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}
