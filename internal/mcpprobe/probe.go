// Package mcpprobe connects to a configured MCP server, performs the
// initialize handshake and lists the tools it offers.
package mcpprobe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/version"
)

// DefaultTimeout bounds the whole probe.
const DefaultTimeout = 15 * time.Second

// Transport names how the probe reaches the server.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Config describes one MCP server. Exactly one of Command or URL is set.
type Config struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
}

// Transport reports which transport the config selects.
func (c Config) Transport() (Transport, error) {
	hasCommand := strings.TrimSpace(c.Command) != ""
	hasURL := strings.TrimSpace(c.URL) != ""
	switch {
	case hasCommand && hasURL:
		return "", errors.New("mcp config sets both command and url")
	case hasCommand:
		return TransportStdio, nil
	case hasURL:
		return TransportHTTP, nil
	default:
		return "", errors.New("mcp config needs a command or a url")
	}
}

// Tool is one tool advertised by the server.
type Tool struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Result is the outcome of a successful probe.
type Result struct {
	Name            string        `json:"name" yaml:"name"`
	Transport       Transport     `json:"transport" yaml:"transport"`
	ServerName      string        `json:"serverName" yaml:"server_name"`
	ServerVersion   string        `json:"serverVersion" yaml:"server_version"`
	ProtocolVersion string        `json:"protocolVersion" yaml:"protocol_version"`
	Tools           []Tool        `json:"tools" yaml:"tools"`
	Elapsed         time.Duration `json:"elapsed" yaml:"elapsed"`
}

type session interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

// connect is swapped in tests.
var connect = dial

func dial(ctx context.Context, cfg Config, transport Transport) (session, error) {
	switch transport {
	case TransportStdio:
		return client.NewStdioMCPClient(cfg.Command, envList(cfg.Env), cfg.Args...)
	case TransportHTTP:
		c, err := client.NewStreamableHttpClient(cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", transport)
	}
}

// Probe connects, initializes, lists tools and closes.
func Probe(ctx context.Context, cfg Config) (Result, error) {
	transport, err := cfg.Transport()
	if err != nil {
		return Result{}, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	log := pslog.Ctx(ctx).With("mcp", cfg.Name, "transport", string(transport))
	start := time.Now()

	sess, err := connect(ctx, cfg, transport)
	if err != nil {
		log.Warn("mcp connect failed", "err", err)
		return Result{}, fmt.Errorf("mcp connect: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Debug("mcp close failed", "err", err)
		}
	}()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "statesync", Version: version.Current()}
	initResult, err := sess.Initialize(ctx, req)
	if err != nil {
		log.Warn("mcp initialize failed", "err", err)
		return Result{}, fmt.Errorf("mcp initialize: %w", err)
	}
	listed, err := sess.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		log.Warn("mcp list tools failed", "err", err)
		return Result{}, fmt.Errorf("mcp list tools: %w", err)
	}

	result := Result{
		Name:            cfg.Name,
		Transport:       transport,
		ServerName:      initResult.ServerInfo.Name,
		ServerVersion:   initResult.ServerInfo.Version,
		ProtocolVersion: initResult.ProtocolVersion,
		Tools:           make([]Tool, 0, len(listed.Tools)),
		Elapsed:         time.Since(start),
	}
	for _, tool := range listed.Tools {
		result.Tools = append(result.Tools, Tool{Name: tool.Name, Description: tool.Description})
	}
	sort.Slice(result.Tools, func(i, j int) bool { return result.Tools[i].Name < result.Tools[j].Name })
	log.Info("mcp probe ok", "server", result.ServerName, "tools", len(result.Tools), "elapsed", result.Elapsed)
	return result, nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
