// Package statesync wires the sync client together: the keyed cache, the
// websocket connection, the outbound actions, the REST client and the local
// state store.
package statesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/actions"
	"pkt.systems/statesync/internal/apiclient"
	"pkt.systems/statesync/internal/appconfig"
	"pkt.systems/statesync/internal/endpoint"
	"pkt.systems/statesync/internal/eventbus"
	"pkt.systems/statesync/internal/logx"
	"pkt.systems/statesync/internal/persist"
	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/internal/wsconn"
	"pkt.systems/statesync/schema"
)

// sqliteFileName is used when storage.path names a directory.
const sqliteFileName = "statesync.db"

// SessionConfig configures a Session.
type SessionConfig struct {
	Config appconfig.Config
	// ServerURL pins the server origin and takes precedence over the saved
	// active server and the configured mode.
	ServerURL string
}

// SessionDeps are the injectable collaborators of a Session. Nil fields are
// built from the config.
type SessionDeps struct {
	Logger     pslog.Logger
	Store      persist.Store
	HTTPClient *http.Client
	Dialer     wsconn.Dialer
	Bus        *eventbus.Bus
}

// Session owns one client instance. Nothing in it is global; two sessions in
// one process do not share state.
type Session struct {
	cfg       SessionConfig
	log       pslog.Logger
	endpoints endpoint.Endpoints

	cache   *querycache.Cache
	bus     *eventbus.Bus
	conn    *wsconn.Client
	actions *actions.Actions
	api     *apiclient.Client
	health  *apiclient.HealthPoller
	local   *persist.LocalState

	store      persist.Store
	ownsStore  bool
	stopStatus func()

	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
}

// NewSession loads local state, resolves endpoints and builds every
// component. It does not connect.
func NewSession(cfg SessionConfig, deps SessionDeps) (*Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	store := deps.Store
	ownsStore := false
	if store == nil {
		opened, err := OpenStore(cfg.Config.Storage, logger)
		if err != nil {
			return nil, err
		}
		store = opened
		ownsStore = true
	}
	fail := func(err error) (*Session, error) {
		if ownsStore {
			_ = store.Close()
		}
		return nil, err
	}

	local := persist.NewLocalState(store, logger)
	if err := local.Load(); err != nil {
		return fail(fmt.Errorf("load local state: %w", err))
	}

	eps, err := resolveEndpoints(cfg, local)
	if err != nil {
		return fail(err)
	}

	cache := querycache.New()
	bus := deps.Bus
	if bus == nil {
		bus = eventbus.New(logger)
	}

	conn, err := wsconn.New(wsconn.Options{
		URL:     eps.WSURL,
		Dialer:  deps.Dialer,
		Backoff: BackoffFromConfig(cfg.Config.Reconnect),
		Logger:  logger,
	})
	if err != nil {
		return fail(err)
	}

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    eps.HTTPBase,
		HTTPClient: httpClientFor(cfg.Config.HTTP, deps.HTTPClient),
		Cache:      cache,
		Bus:        bus,
		StaleTime:  time.Duration(cfg.Config.HTTP.StaleTimeSeconds) * time.Second,
		Logger:     logger,
	})
	if err != nil {
		return fail(err)
	}

	s := &Session{
		cfg:       cfg,
		log:       logger,
		endpoints: eps,
		cache:     cache,
		bus:       bus,
		conn:      conn,
		actions:   actions.New(cache, conn),
		api:       api,
		local:     local,
		store:     store,
		ownsStore: ownsStore,
	}
	if interval := healthInterval(cfg.Config.Health, local.Settings()); interval > 0 {
		s.health = apiclient.NewHealthPoller(api, bus, interval)
	}
	conn.OnAny(s.apply)
	s.stopStatus = conn.OnStatus(s.forwardStatus)
	return s, nil
}

// Start connects the websocket and starts the health poller.
func (s *Session) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	if s.started {
		s.mu.Unlock()
		s.log.Warn("session start rejected", "reason", "already started")
		return errors.New("session already started")
	}
	s.started = true
	s.mu.Unlock()

	ctx = logx.ContextWithServer(pslog.ContextWithLogger(ctx, s.log), s.endpoints.HTTPBase)
	s.log.Info("session start", "server", s.endpoints.HTTPBase, "ws", s.endpoints.WSURL, "mode", s.endpoints.Mode)
	if err := s.conn.Connect(ctx); err != nil {
		return err
	}
	if s.health != nil {
		s.health.Start(ctx)
	}
	return nil
}

// Close stops the health poller, closes the connection (cancelling any
// pending reconnect) and closes the store if the session opened it.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.health != nil {
			s.health.Stop()
		}
		if s.stopStatus != nil {
			s.stopStatus()
		}
		err = s.conn.Close()
		if s.ownsStore {
			err = errors.Join(err, s.store.Close())
		}
		s.log.Info("session closed")
	})
	return err
}

// WaitInitialized blocks until the first initial_state has been applied.
func (s *Session) WaitInitialized(ctx context.Context) error {
	ready := make(chan struct{})
	var once sync.Once
	unsubscribe := s.cache.Subscribe(syncstate.InitializedKey, func(value any, ok bool) {
		if done, _ := value.(bool); ok && done {
			once.Do(func() { close(ready) })
		}
	})
	defer unsubscribe()
	if syncstate.Initialized(s.cache) {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Endpoints returns the resolved server endpoints.
func (s *Session) Endpoints() endpoint.Endpoints { return s.endpoints }

// Cache returns the session cache.
func (s *Session) Cache() *querycache.Cache { return s.cache }

// Bus returns the notification bus.
func (s *Session) Bus() *eventbus.Bus { return s.bus }

// Conn returns the websocket client.
func (s *Session) Conn() *wsconn.Client { return s.conn }

// Actions returns the outbound action hooks.
func (s *Session) Actions() *actions.Actions { return s.actions }

// API returns the REST client.
func (s *Session) API() *apiclient.Client { return s.api }

// Local returns the persisted local state.
func (s *Session) Local() *persist.LocalState { return s.local }

// Snapshot returns the mirrored global state.
func (s *Session) Snapshot() schema.GlobalState { return syncstate.Snapshot(s.cache) }

func (s *Session) apply(msg schema.Message) {
	if err := syncstate.Apply(s.cache, msg); err != nil {
		logx.WithMessage(s.log, msg.Type()).Warn("state apply failed", "err", err)
	}
}

func (s *Session) forwardStatus(status wsconn.Status) {
	out := eventbus.ConnectionStatus{
		URL:     status.URL,
		State:   string(status.State),
		Attempt: status.Attempt,
	}
	if status.Err != nil {
		out.Err = status.Err.Error()
	}
	s.bus.OnConnection(out)
	if status.State == wsconn.StateError && errors.Is(status.Err, schema.ErrCircuitOpen) {
		s.bus.Error("Connection lost", "Could not reach the server. Reconnect to try again.")
	}
}

// OpenStore opens the configured local state store.
func OpenStore(cfg appconfig.StorageConfig, logger pslog.Logger) (persist.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	switch cfg.Driver {
	case appconfig.StorageFile, "":
		return persist.NewFileStore(path, logger)
	case appconfig.StorageSQLite:
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, sqliteFileName)
		}
		return persist.NewSQLiteStore(path, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// BackoffFromConfig converts the reconnect section to a wsconn backoff.
func BackoffFromConfig(cfg appconfig.ReconnectConfig) wsconn.Backoff {
	return wsconn.Backoff{
		Base:        time.Duration(cfg.BaseDelayMillis) * time.Millisecond,
		Max:         time.Duration(cfg.MaxDelayMillis) * time.Millisecond,
		MaxAttempts: cfg.MaxAttempts,
	}
}

func resolveEndpoints(cfg SessionConfig, local *persist.LocalState) (endpoint.Endpoints, error) {
	opts := cfg.Config.EndpointOptions()
	var (
		eps endpoint.Endpoints
		err error
	)
	switch {
	case strings.TrimSpace(cfg.ServerURL) != "":
		eps, err = endpoint.FromServerURL(cfg.ServerURL, opts)
	default:
		if server, ok := local.ActiveServer(); ok {
			eps, err = endpoint.FromServerURL(server.URL, opts)
		} else {
			eps, err = endpoint.Resolve(cfg.Config.Mode(), opts)
		}
	}
	if err != nil {
		return endpoint.Endpoints{}, fmt.Errorf("resolve endpoints: %w", err)
	}
	if !strings.Contains(eps.WSURL, "://") {
		return endpoint.Endpoints{}, fmt.Errorf("production mode needs server.origin or an active saved server")
	}
	return eps, nil
}

func httpClientFor(cfg appconfig.HTTPConfig, client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = apiclient.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// healthInterval returns zero when polling is disabled in the config. A
// saved local interval overrides the configured one.
func healthInterval(cfg appconfig.HealthConfig, local schema.LocalSettings) time.Duration {
	if cfg.IntervalSeconds <= 0 {
		return 0
	}
	seconds := cfg.IntervalSeconds
	if local.HealthIntervalSeconds > 0 && local.HealthIntervalSeconds != schema.DefaultHealthIntervalSeconds {
		seconds = local.HealthIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}
