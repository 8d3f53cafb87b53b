package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/statesync/schema"
)

type contextKey int

const (
	serverKey contextKey = iota
	tabKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithServer annotates the logger with the sync server url if present.
func WithServer(ctx context.Context, server string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if server != "" {
		if current, ok := ctx.Value(serverKey).(string); ok && current == server {
			return log
		}
		log = log.With("server", server)
	}
	return log
}

// WithTab annotates the logger with tab kind and id.
func WithTab(ctx context.Context, kind schema.TabKind, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if kind != "" {
		log = log.With("kind", kind)
	}
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithMessage annotates the logger with a sync message type.
func WithMessage(log pslog.Logger, msgType schema.MessageType) pslog.Logger {
	if msgType != "" {
		log = log.With("msg_type", msgType)
	}
	return log
}

// ContextWithServer stores the server marker on the context for log de-duplication.
func ContextWithServer(ctx context.Context, server string) context.Context {
	if ctx == nil || server == "" {
		return ctx
	}
	return context.WithValue(ctx, serverKey, server)
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithServerLogger attaches a server-annotated logger and marker to the context.
func ContextWithServerLogger(ctx context.Context, log pslog.Logger, server string) context.Context {
	if server != "" {
		log = log.With("server", server)
	}
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithServer(ctx, server)
}
