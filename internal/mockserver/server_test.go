package mockserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/schema"
)

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) schema.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := schema.DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg schema.Message) {
	t.Helper()
	data, err := schema.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitSubscribers(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().Subscribers() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", want, srv.Hub().Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectSendsInitialState(t *testing.T) {
	_, ts := startServer(t, Config{})
	conn := dialWS(t, ts, "/ws")
	msg := readMessage(t, conn)
	initial, ok := msg.(schema.InitialState)
	if !ok {
		t.Fatalf("expected initial_state, got %T", msg)
	}
	want := schema.InitialGlobalState()
	if len(initial.Data.ProjectTabs) != len(want.ProjectTabs) || len(initial.Data.ChatTabs) != len(want.ChatTabs) {
		t.Fatalf("unexpected initial state %+v", initial.Data)
	}
}

func TestInboundMessageIsAppliedAndBroadcast(t *testing.T) {
	srv, ts := startServer(t, Config{})
	a := dialWS(t, ts, "/ws")
	b := dialWS(t, ts, "/ws")
	readMessage(t, a)
	readMessage(t, b)
	waitSubscribers(t, srv, 2)

	create := schema.CreateTab{
		Kind:  schema.TabKindProject,
		TabID: "p-new",
		Data:  schema.Record{"displayName": "Scratch"},
	}
	writeMessage(t, a, create)

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		got, ok := msg.(schema.CreateTab)
		if !ok || got.TabID != "p-new" || got.Kind != schema.TabKindProject {
			t.Fatalf("expected broadcast create, got %#v", msg)
		}
	}
	if _, ok := syncstate.Tab(srv.Cache(), schema.TabKindProject, "p-new"); !ok {
		t.Fatalf("expected server state to hold the new tab")
	}
	if active := syncstate.ActiveTabID(srv.Cache(), schema.TabKindProject); active != "p-new" {
		t.Fatalf("expected active project tab p-new, got %q", active)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	srv, ts := startServer(t, Config{})
	conn := dialWS(t, ts, "/ws")
	readMessage(t, conn)
	waitSubscribers(t, srv, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"launch_rockets"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeMessage(t, conn, schema.UpdateTheme{Theme: "dark"})
	msg := readMessage(t, conn)
	if theme, ok := msg.(schema.UpdateTheme); !ok || theme.Theme != "dark" {
		t.Fatalf("expected connection to survive bad frame, got %#v", msg)
	}
}

func TestBroadcastStateAndHistory(t *testing.T) {
	srv, ts := startServer(t, Config{HistorySize: 2})
	conn := dialWS(t, ts, "/ws")
	readMessage(t, conn)
	waitSubscribers(t, srv, 1)

	for i := 0; i < 3; i++ {
		if err := srv.BroadcastState(); err != nil {
			t.Fatalf("broadcast: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, ok := readMessage(t, conn).(schema.StateUpdate); !ok {
			t.Fatalf("expected state_update")
		}
	}
	frames := srv.Hub().Replay(0)
	if len(frames) != 2 || frames[0].Seq != 2 || frames[1].Seq != 3 {
		t.Fatalf("expected bounded history with seq 2,3, got %+v", frames)
	}
	if got := srv.Hub().Replay(2); len(got) != 1 {
		t.Fatalf("expected one frame after seq 2, got %d", len(got))
	}
}

func TestHTTPEndpointsUnderBasePath(t *testing.T) {
	_, ts := startServer(t, Config{BasePath: "/pl/"})

	resp, err := http.Get(ts.URL + "/pl/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.Status != "ok" {
		t.Fatalf("unexpected health body %+v", body)
	}

	conn := dialWS(t, ts, "/pl/ws")
	if _, ok := readMessage(t, conn).(schema.InitialState); !ok {
		t.Fatalf("expected initial_state under base path")
	}

	missing, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 outside base path, got %d", missing.StatusCode)
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub(10, nil)
	hub.depth = 1
	ch, unsub, _ := hub.Subscribe()
	defer unsub()
	hub.Publish(schema.MsgStateUpdate, []byte("a"))
	hub.Publish(schema.MsgStateUpdate, []byte("b"))
	if frame := <-ch; string(frame.Data) != "a" {
		t.Fatalf("expected first frame, got %q", frame.Data)
	}
	select {
	case frame := <-ch:
		t.Fatalf("expected second frame dropped, got %q", frame.Data)
	default:
	}
	unsub()
	unsub()
}
