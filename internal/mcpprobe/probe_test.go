package mcpprobe

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newMCPServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := server.NewMCPServer("fixture", "1.2.3", server.WithToolCapabilities(true))
	echo := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}
	s.AddTool(mcp.NewTool("search_files", mcp.WithDescription("Search project files")), echo)
	s.AddTool(mcp.NewTool("read_file", mcp.WithDescription("Read a file")), echo)
	srv := httptest.NewServer(server.NewStreamableHTTPServer(s))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeStreamableHTTP(t *testing.T) {
	srv := newMCPServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := Probe(ctx, Config{Name: "fixture", URL: srv.URL + "/mcp"})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if result.Transport != TransportHTTP || result.ServerName != "fixture" || result.ServerVersion != "1.2.3" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Tools) != 2 || result.Tools[0].Name != "read_file" || result.Tools[1].Name != "search_files" {
		t.Fatalf("expected sorted tools, got %+v", result.Tools)
	}
	if result.ProtocolVersion == "" {
		t.Fatalf("expected negotiated protocol version")
	}
}

func TestConfigTransport(t *testing.T) {
	cases := []struct {
		cfg     Config
		want    Transport
		wantErr bool
	}{
		{Config{Command: "mcp-fs"}, TransportStdio, false},
		{Config{URL: "http://localhost/mcp"}, TransportHTTP, false},
		{Config{Command: "x", URL: "http://x"}, "", true},
		{Config{Command: "  "}, "", true},
	}
	for _, tc := range cases {
		got, err := tc.cfg.Transport()
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("config %+v: got %q err=%v", tc.cfg, got, err)
		}
	}
}

type fakeSession struct {
	initErr error
	closed  bool
}

func (f *fakeSession) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (f *fakeSession) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func TestProbeClosesOnInitializeFailure(t *testing.T) {
	fake := &fakeSession{initErr: errors.New("handshake refused")}
	prev := connect
	t.Cleanup(func() { connect = prev })
	var gotEnv map[string]string
	connect = func(ctx context.Context, cfg Config, transport Transport) (session, error) {
		if transport != TransportStdio {
			t.Fatalf("expected stdio transport, got %q", transport)
		}
		gotEnv = cfg.Env
		return fake, nil
	}

	_, err := Probe(context.Background(), Config{Name: "fs", Command: "mcp-fs", Env: map[string]string{"ROOT": "/tmp"}})
	if err == nil || !strings.Contains(err.Error(), "handshake refused") {
		t.Fatalf("expected initialize error, got %v", err)
	}
	if !fake.closed {
		t.Fatalf("expected session to be closed")
	}
	if gotEnv["ROOT"] != "/tmp" {
		t.Fatalf("expected env passed through, got %v", gotEnv)
	}
}

func TestEnvList(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	if strings.Join(got, ",") != "A=1,B=2" {
		t.Fatalf("unexpected env list %v", got)
	}
	if envList(nil) != nil {
		t.Fatalf("expected nil for empty env")
	}
}
