package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
	"pkt.systems/statesync/schema"
)

// State is the connection lifecycle state.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Status is a point-in-time view of the connection.
type Status struct {
	URL     string
	State   State
	Attempt int
	Err     error
}

// Handler receives decoded inbound messages.
type Handler func(schema.Message)

// Options configures a Client.
type Options struct {
	URL          string
	Dialer       Dialer
	Backoff      Backoff
	WriteTimeout time.Duration
	Header       http.Header
	Logger       pslog.Logger
}

// Client owns one websocket connection to the sync server plus its
// reconnect loop. Inbound frames are dispatched in delivery order on the
// read goroutine. Handlers and status callbacks may call Reconnect or Close.
type Client struct {
	url          string
	dialer       Dialer
	backoff      Backoff
	writeTimeout time.Duration
	header       http.Header
	log          pslog.Logger

	mu          sync.Mutex
	state       State
	attempt     int
	lastErr     error
	conn        *websocket.Conn
	parent      context.Context
	cancel      context.CancelFunc
	gen         uint64
	timer       *time.Timer
	handlers    map[schema.MessageType][]Handler
	anyHandlers []Handler
	statusFns   map[uint64]func(Status)
	nextID      uint64

	writeMu sync.Mutex
}

// New constructs a Client. It does not connect until Connect is called.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("websocket url is required")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Client{
		url:          opts.URL,
		dialer:       dialer,
		backoff:      opts.Backoff.normalized(),
		writeTimeout: writeTimeout,
		header:       opts.Header,
		log:          logger.With("server", opts.URL),
		state:        StateClosed,
		handlers:     map[schema.MessageType][]Handler{},
		statusFns:    map[uint64]func(Status){},
	}, nil
}

// URL returns the websocket endpoint.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// IsOpen reports whether frames can be sent.
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen && c.conn != nil
}

// OnMessage registers h for frames with the given type tag.
func (c *Client) OnMessage(msgType schema.MessageType, h Handler) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.handlers[msgType] = append(c.handlers[msgType], h)
	c.mu.Unlock()
}

// OnAny registers h for every inbound frame.
func (c *Client) OnAny(h Handler) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.anyHandlers = append(c.anyHandlers, h)
	c.mu.Unlock()
}

// OnStatus registers fn for status transitions and returns an unsubscribe func.
func (c *Client) OnStatus(fn func(Status)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.statusFns[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.statusFns, id)
		c.mu.Unlock()
	}
}

// Connect starts the connection loop. It returns immediately; progress is
// reported through Status and OnStatus.
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	c.parent = ctx
	c.startLocked()
	c.mu.Unlock()
	return nil
}

// Reconnect resets the attempt counter and the breaker, tears down the
// current connection and starts a fresh loop. The old loop is signalled, not
// joined; once superseded it no longer changes the client state.
func (c *Client) Reconnect() {
	c.stop()
	c.mu.Lock()
	c.attempt = 0
	c.lastErr = nil
	if c.parent == nil {
		c.parent = context.Background()
	}
	c.startLocked()
	c.mu.Unlock()
	c.log.Info("ws reconnect requested")
}

// Close stops the loop, cancels any pending reconnect timer and closes the
// socket. It is safe to call more than once.
func (c *Client) Close() error {
	c.stop()
	c.setState(StateClosed, nil)
	return nil
}

// Send encodes msg and writes it as one text frame.
func (c *Client) Send(msg schema.Message) error {
	data, err := schema.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen && conn != nil
	c.mu.Unlock()
	if !open {
		c.log.Warn("ws send skipped", "msg_type", msg.Type(), "err", schema.ErrNotConnected)
		return schema.ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warn("ws send failed", "msg_type", msg.Type(), "err", err)
		return fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	c.log.Trace("ws send ok", "msg_type", msg.Type())
	return nil
}

func (c *Client) startLocked() {
	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	c.gen++
	go c.run(ctx, c.gen)
}

// stop retires the current loop. It never waits for the loop goroutine, so
// it is safe to reach from a handler or status callback running on it.
func (c *Client) stop() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	timer := c.timer
	c.cancel = nil
	c.conn = nil
	c.timer = nil
	c.gen++
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) run(ctx context.Context, gen uint64) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.setStateFor(gen, StateConnecting, nil) {
			return
		}
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !c.failed(ctx, gen, err) {
				return
			}
			continue
		}
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.attempt = 0
		c.lastErr = nil
		c.mu.Unlock()
		if !c.setStateFor(gen, StateOpen, nil) {
			_ = conn.Close()
			return
		}
		c.log.Info("ws connect ok")

		stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = c.readLoop(conn)
		stopWatch()
		_ = conn.Close()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("ws connection lost", "err", err)
		if !c.failed(ctx, gen, err) {
			return
		}
	}
}

// failed records a failed attempt and waits out the backoff delay. It
// returns false when the loop should stop.
func (c *Client) failed(ctx context.Context, gen uint64, cause error) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.attempt++
	attempt := c.attempt
	c.lastErr = cause
	c.mu.Unlock()

	if attempt >= c.backoff.MaxAttempts {
		err := fmt.Errorf("%w after %d attempts: %v", schema.ErrCircuitOpen, attempt, cause)
		c.log.Error("ws reconnect gave up", "attempts", attempt, "err", cause)
		c.setStateFor(gen, StateError, err)
		return false
	}
	delay := c.backoff.Delay(attempt - 1)
	c.log.Debug("ws reconnect scheduled", "attempt", attempt, "delay", delay.String(), "err", cause)
	if !c.setStateFor(gen, StateClosed, cause) {
		return false
	}

	timer := time.NewTimer(delay)
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		timer.Stop()
		return false
	}
	c.timer = timer
	c.mu.Unlock()
	defer func() {
		timer.Stop()
		c.mu.Lock()
		if c.timer == timer {
			c.timer = nil
		}
		c.mu.Unlock()
	}()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		msg, err := schema.DecodeMessage(data)
		if err != nil {
			c.log.Warn("ws frame dropped", "err", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg schema.Message) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[msg.Type()]...)
	handlers = append(handlers, c.anyHandlers...)
	c.mu.Unlock()
	c.log.Trace("ws frame received", "msg_type", msg.Type(), "handlers", len(handlers))
	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	c.notifyLocked(state, err)
}

// setStateFor applies a transition from the loop of generation gen. It
// reports false, changing nothing, when that loop has been superseded.
func (c *Client) setStateFor(gen uint64, state State, err error) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.notifyLocked(state, err)
	return true
}

// notifyLocked is entered with c.mu held and releases it before running
// the status callbacks.
func (c *Client) notifyLocked(state State, err error) {
	c.state = state
	if err != nil {
		c.lastErr = err
	}
	status := c.statusLocked()
	fns := make([]func(Status), 0, len(c.statusFns))
	for _, fn := range c.statusFns {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}

func (c *Client) statusLocked() Status {
	return Status{URL: c.url, State: c.state, Attempt: c.attempt, Err: c.lastErr}
}
