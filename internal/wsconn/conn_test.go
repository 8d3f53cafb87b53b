package wsconn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/statesync/schema"
)

type echoServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	received chan []byte
	greeting []string
}

func newEchoServer(t *testing.T, greeting ...string) *echoServer {
	t.Helper()
	s := &echoServer{received: make(chan []byte, 16), greeting: greeting}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range s.greeting {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.received <- data
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status().State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, last %+v", want, c.Status())
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 10}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
		{-1, time.Second},
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		d := b.Delay(i)
		if d < prev || d > b.Max {
			t.Fatalf("delay %d not monotonic or above max: %s", i, d)
		}
		prev = d
	}
}

func TestDispatchesInboundFramesInOrder(t *testing.T) {
	srv := newEchoServer(t,
		`{"type":"initial_state","data":{"settings":{"theme":"light"},"projectTabs":{},"chatTabs":{},"projectActiveTabId":null,"chatActiveTabId":null}}`,
		`not json`,
		`{"type":"update_settings_partial","partial":{"theme":"dark"}}`,
	)
	client, err := New(Options{URL: srv.wsURL()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()

	seen := make(chan schema.MessageType, 4)
	partials := make(chan schema.PatchSettings, 1)
	client.OnMessage(schema.MsgUpdateSettingsPartial, func(msg schema.Message) {
		partials <- msg.(schema.PatchSettings)
	})
	client.OnAny(func(msg schema.Message) {
		seen <- msg.Type()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var order []schema.MessageType
	for len(order) < 2 {
		select {
		case msgType := <-seen:
			order = append(order, msgType)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frames, got %v", order)
		}
	}
	if order[0] != schema.MsgInitialState || order[1] != schema.MsgUpdateSettingsPartial {
		t.Fatalf("unexpected dispatch order %v", order)
	}
	patch := <-partials
	if patch.Partial["theme"] != "dark" {
		t.Fatalf("unexpected patch %v", patch.Partial)
	}
}

func TestSendWritesFrame(t *testing.T) {
	srv := newEchoServer(t)
	client, err := New(Options{URL: srv.wsURL()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, client, StateOpen)

	if err := client.Send(schema.UpdateTheme{Theme: "dark"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case data := <-srv.received:
		msg, err := schema.DecodeMessage(data)
		if err != nil {
			t.Fatalf("server decode: %v", err)
		}
		if theme, ok := msg.(schema.UpdateTheme); !ok || theme.Theme != "dark" {
			t.Fatalf("unexpected frame %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func TestSendWhenClosedReturnsNotConnected(t *testing.T) {
	client, err := New(Options{URL: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = client.Send(schema.UpdateTheme{Theme: "dark"})
	if !errors.Is(err, schema.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

type failingDialer struct {
	calls atomic.Int32
}

func (d *failingDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	return nil, nil, errors.New("connection refused")
}

func TestBreakerOpensAfterMaxAttempts(t *testing.T) {
	dialer := &failingDialer{}
	client, err := New(Options{
		URL:     "ws://example.invalid/ws",
		Dialer:  dialer,
		Backoff: Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond, MaxAttempts: 3},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, client, StateError)
	status := client.Status()
	if !errors.Is(status.Err, schema.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", status.Err)
	}
	time.Sleep(30 * time.Millisecond)
	if calls := dialer.calls.Load(); calls != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", calls)
	}

	client.Reconnect()
	deadline := time.Now().Add(2 * time.Second)
	for dialer.calls.Load() < 6 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	waitState(t, client, StateError)
	time.Sleep(30 * time.Millisecond)
	if calls := dialer.calls.Load(); calls != 6 {
		t.Fatalf("expected reconnect to reset the breaker, got %d calls", calls)
	}
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	dialer := &failingDialer{}
	client, err := New(Options{
		URL:     "ws://example.invalid/ws",
		Dialer:  dialer,
		Backoff: Backoff{Base: time.Hour, Max: time.Hour, MaxAttempts: 5},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var states []State
	var mu sync.Mutex
	client.OnStatus(func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for dialer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	done := make(chan struct{})
	go func() {
		_ = client.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("close blocked on pending reconnect timer")
	}
	if client.Status().State != StateClosed {
		t.Fatalf("expected closed state, got %s", client.Status().State)
	}
	if dialer.calls.Load() != 1 {
		t.Fatalf("expected no further dials after close")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 || states[0] != StateConnecting {
		t.Fatalf("expected connecting status first, got %v", states)
	}
}

// flakyDialer fails the first fails dials and then dials for real.
type flakyDialer struct {
	fails int32
	calls atomic.Int32
}

func (d *flakyDialer) DialContext(ctx context.Context, urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	if d.calls.Add(1) <= d.fails {
		return nil, nil, errors.New("connection refused")
	}
	return websocket.DefaultDialer.DialContext(ctx, urlStr, header)
}

func TestReconnectsAfterServerDropWithResetAttempts(t *testing.T) {
	accepted := make(chan *websocket.Conn, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		accepted <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	dialer := &flakyDialer{fails: 3}
	client, err := New(Options{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		Dialer:  dialer,
		Backoff: Backoff{Base: 5 * time.Millisecond, Max: 20 * time.Millisecond, MaxAttempts: 10},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()
	var (
		mu       sync.Mutex
		statuses []Status
	)
	client.OnStatus(func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var first *websocket.Conn
	select {
	case first = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the first connection")
	}
	waitState(t, client, StateOpen)
	if got := client.Status().Attempt; got != 0 {
		t.Fatalf("expected attempt counter reset after connect, got %d", got)
	}

	_ = first.Close()
	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a reconnect after the server dropped the socket")
	}
	waitState(t, client, StateOpen)
	if got := client.Status().Attempt; got != 0 {
		t.Fatalf("expected attempt counter reset after reconnect, got %d", got)
	}

	mu.Lock()
	defer mu.Unlock()
	maxBeforeOpen := 0
	opened := false
	for _, s := range statuses {
		if !opened {
			if s.State == StateOpen {
				opened = true
			} else if s.Attempt > maxBeforeOpen {
				maxBeforeOpen = s.Attempt
			}
			continue
		}
		if s.State == StateClosed {
			if s.Attempt != 1 {
				t.Fatalf("expected the drop to schedule the first backoff step, got attempt %d", s.Attempt)
			}
			if maxBeforeOpen != 3 {
				t.Fatalf("expected three failed dials before the first open, got %d", maxBeforeOpen)
			}
			return
		}
	}
	t.Fatalf("expected a closed status after the drop, got %+v", statuses)
}

func TestReconnectFromStatusCallback(t *testing.T) {
	dialer := &failingDialer{}
	client, err := New(Options{
		URL:     "ws://example.invalid/ws",
		Dialer:  dialer,
		Backoff: Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, MaxAttempts: 2},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()
	var retried atomic.Int32
	returned := make(chan struct{})
	client.OnStatus(func(s Status) {
		if s.State == StateError && retried.Add(1) == 1 {
			client.Reconnect()
			close(returned)
		}
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("reconnect from a status callback did not return")
	}
	deadline := time.Now().Add(2 * time.Second)
	for dialer.calls.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	waitState(t, client, StateError)
	time.Sleep(20 * time.Millisecond)
	if calls := dialer.calls.Load(); calls != 4 {
		t.Fatalf("expected the second loop to dial twice more, got %d calls", calls)
	}
}

func TestCloseFromMessageHandler(t *testing.T) {
	srv := newEchoServer(t,
		`{"type":"initial_state","data":{"settings":{"theme":"light"},"projectTabs":{},"chatTabs":{},"projectActiveTabId":null,"chatActiveTabId":null}}`,
	)
	client, err := New(Options{URL: srv.wsURL()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	returned := make(chan struct{})
	client.OnAny(func(msg schema.Message) {
		_ = client.Close()
		close(returned)
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("close from a message handler did not return")
	}
	if client.IsOpen() || client.Status().State != StateClosed {
		t.Fatalf("expected closed client, got %+v", client.Status())
	}
	time.Sleep(20 * time.Millisecond)
	if client.Status().State != StateClosed {
		t.Fatalf("expected no transitions after close, got %+v", client.Status())
	}
}
