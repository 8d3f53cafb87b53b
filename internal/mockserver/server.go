// Package mockserver is a development sync server: it holds one global
// state, sends it to every client on connect, applies inbound messages to it
// and rebroadcasts them.
package mockserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/endpoint"
	"pkt.systems/statesync/internal/logx"
	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/schema"
)

const (
	writeTimeout    = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 50 * time.Second
	maxMessageBytes = 1 << 20
)

// Config defines the mock server settings.
type Config struct {
	Addr        string
	BasePath    string
	HistorySize int
	// Initial seeds the state; zero value means schema.InitialGlobalState.
	Initial *schema.GlobalState
}

// Server serves /ws and a small HTTP API.
type Server struct {
	cfg      Config
	cache    *querycache.Cache
	hub      *Hub
	basePath string
	upgrader websocket.Upgrader
	log      pslog.Logger

	// applyMu serializes apply-and-broadcast so every client sees frames in
	// the order they were applied.
	applyMu sync.Mutex
}

// New constructs a server seeded with the configured initial state.
func New(cfg Config, logger pslog.Logger) (*Server, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	initial := schema.InitialGlobalState()
	if cfg.Initial != nil {
		initial = *cfg.Initial
	}
	cache := querycache.New()
	if err := syncstate.Apply(cache, schema.InitialState{Data: initial}); err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		cache:    cache,
		hub:      NewHub(cfg.HistorySize, logger),
		basePath: endpoint.NormalizeBasePath(cfg.BasePath),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logger,
	}, nil
}

// Cache exposes the server-side state.
func (s *Server) Cache() *querycache.Cache { return s.cache }

// Hub exposes the broadcast hub.
func (s *Server) Hub() *Hub { return s.hub }

// Snapshot returns the current global state.
func (s *Server) Snapshot() schema.GlobalState {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	return syncstate.Snapshot(s.cache)
}

// Apply applies msg to the server state and broadcasts it.
func (s *Server) Apply(msg schema.Message) error {
	data, err := schema.EncodeMessage(msg)
	if err != nil {
		return err
	}
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if err := syncstate.Apply(s.cache, msg); err != nil {
		return err
	}
	s.hub.Publish(msg.Type(), data)
	return nil
}

// BroadcastState sends a state_update carrying the full snapshot.
func (s *Server) BroadcastState() error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	data, err := schema.EncodeMessage(schema.StateUpdate{Data: syncstate.Snapshot(s.cache)})
	if err != nil {
		return err
	}
	s.hub.Publish(schema.MsgStateUpdate, data)
	return nil
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/state/broadcast", s.handleBroadcast)

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	return root
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.Subscribers()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.Snapshot())
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if err := s.BroadcastState(); err != nil {
		writeError(w, http.StatusInternalServerError, "BROADCAST_FAILED", err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"broadcast": true})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}
	log := s.log.With("remote", clientIP(r))
	defer conn.Close()

	frames, unsub := s.subscribeWithSnapshot(conn, log)
	if frames == nil {
		return
	}
	defer unsub()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(ctx, conn, frames, log)
	}()
	s.readLoop(conn, log)
	cancel()
	<-done
}

// subscribeWithSnapshot writes initial_state and subscribes under the apply
// lock so no applied message falls between the snapshot and the stream.
func (s *Server) subscribeWithSnapshot(conn *websocket.Conn, log pslog.Logger) (<-chan Frame, func()) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	data, err := schema.EncodeMessage(schema.InitialState{Data: syncstate.Snapshot(s.cache)})
	if err != nil {
		log.Error("ws snapshot encode failed", "err", err)
		return nil, nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("ws initial state failed", "err", err)
		return nil, nil
	}
	frames, unsub, seq := s.hub.Subscribe()
	log.Info("ws client connected", "seq", seq)
	return frames, unsub
}

func (s *Server) readLoop(conn *websocket.Conn, log pslog.Logger) {
	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("ws read failed", "err", err)
			} else {
				log.Info("ws client disconnected")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		msg, err := schema.DecodeMessage(data)
		if err != nil {
			log.Warn("ws frame dropped", "err", err)
			continue
		}
		if err := s.Apply(msg); err != nil {
			logx.WithMessage(log, msg.Type()).Warn("ws apply failed", "err", err)
			continue
		}
		logx.WithMessage(log, msg.Type()).Debug("ws message applied")
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, frames <-chan Frame, log pslog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame.Data); err != nil {
				log.Warn("ws write failed", "seq", frame.Seq, "err", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]any{"message": message, "code": code},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
