package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/eventbus"
	"pkt.systems/statesync/internal/format"
	"pkt.systems/statesync/schema"
)

func newWatchCmd(flags *clientFlags) *cobra.Command {
	var showMessages bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print notifications and connection changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			session, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			out := cmd.OutOrStdout()
			renderer := format.NewPlainRenderer()
			events, cancelEvents := session.Bus().Subscribe()
			defer cancelEvents()
			if showMessages {
				session.Conn().OnAny(func(msg schema.Message) {
					_, _ = fmt.Fprintln(out, renderer.FormatMessage(time.Now(), msg))
				})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := session.Start(ctx); err != nil {
					return err
				}
				logger.Info("watch started", "ws", session.Endpoints().WSURL)
				<-ctx.Done()
				return session.Close()
			})
			g.Go(func() error {
				return printEvents(ctx, out, renderer, events)
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&showMessages, "messages", false, "print the type of every inbound message")
	return cmd
}

func printEvents(ctx context.Context, out io.Writer, renderer *format.PlainRenderer, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintln(out, renderer.FormatEvent(ev)); err != nil {
				return err
			}
		}
	}
}
