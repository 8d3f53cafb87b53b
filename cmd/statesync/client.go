package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/statesync"
	"pkt.systems/statesync/internal/appconfig"
)

// defaultConnectTimeout bounds connect plus the first initial_state.
const defaultConnectTimeout = 10 * time.Second

func loadConfig(flags *clientFlags) (appconfig.Config, error) {
	return appconfig.Load(flags.cfgPath)
}

// newSession builds a session without connecting. Commands that only use
// the REST client call this.
func newSession(cmd *cobra.Command, flags *clientFlags) (*statesync.Session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return statesync.NewSession(statesync.SessionConfig{
		Config:    cfg,
		ServerURL: flags.serverURL,
	}, statesync.SessionDeps{
		Logger: pslog.Ctx(cmd.Context()),
	})
}

// connectSession builds a session, connects it and waits for the first
// initial_state.
func connectSession(cmd *cobra.Command, flags *clientFlags, timeout time.Duration) (*statesync.Session, error) {
	session, err := newSession(cmd, flags)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := session.Start(cmd.Context()); err != nil {
		_ = session.Close()
		return nil, err
	}
	if err := session.WaitInitialized(ctx); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("waiting for initial state from %s: %w", session.Endpoints().WSURL, err)
	}
	return session, nil
}
