package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"match-relay/applog"
	"match-relay/config"
	"match-relay/presence"
	"match-relay/registry"
	"match-relay/relay"
	"match-relay/session"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server exposes the relay over websocket endpoints plus a status route.
type Server struct {
	cfg      *config.Config
	sessions session.Store
	registry *registry.Registry
	engine   *relay.Engine
	presence *presence.Tracker

	upgrader websocket.Upgrader

	presenceMu    sync.Mutex
	presenceConns map[uint]*wsTransport

	httpServer *http.Server
}

func New(
	cfg *config.Config,
	sessions session.Store,
	reg *registry.Registry,
	engine *relay.Engine,
	tracker *presence.Tracker,
) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		registry: reg,
		engine:   engine,
		presence: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from a different origin than the API host.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		presenceConns: make(map[uint]*wsTransport),
	}
}

// Handler builds the route table. Split out from Run so tests can mount it
// on an httptest server.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/ws/match/{matchId}", s.handleMatch)
	router.HandleFunc("/ws/presence", s.handlePresence)
	return router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	listener = netutil.LimitListener(listener, s.cfg.MaxConnections)

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	applog.Info("Relay server listening",
		zap.String("listenAddr", listener.Addr().String()),
		zap.Int("maxConnections", s.cfg.MaxConnections),
	)

	err = s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "running",
		"activeMatches": s.registry.ActiveMatches(),
		"onlineUsers":   s.presence.Count(),
	})
}

// handleMatch upgrades the connection, validates the session token and
// hands the transport to the relay engine for the rest of its life. A
// rejected token closes the socket before any registry interaction, with
// no descriptive message on the wire.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	matchKey := mux.Vars(r)["matchId"]
	token := r.URL.Query().Get("token")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Error("Websocket upgrade failed", zap.Error(err))
		return
	}
	transport := newWsTransport(conn)

	identity, err := s.sessions.Validate(r.Context(), token)
	if err != nil {
		applog.Warn("Closing match connection, session token rejected",
			zap.String("matchKey", matchKey),
			zap.Error(err),
		)
		_ = transport.Close()
		return
	}

	ctx := applog.AddContextFields(context.Background(),
		zap.String("remoteAddr", transport.RemoteAddr()),
	)

	s.presence.Add(identity.UserId)
	defer s.presence.Remove(identity.UserId)

	s.engine.HandleConnection(ctx, transport, matchKey, *identity)
}

// handlePresence is the lightweight online-status endpoint. One connection
// per user; a newer one supersedes the older. The client pings, the server
// answers with pong.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Error("Presence websocket upgrade failed", zap.Error(err))
		return
	}
	transport := newWsTransport(conn)

	identity, err := s.sessions.Validate(r.Context(), token)
	if err != nil {
		applog.Warn("Closing presence connection, session token rejected", zap.Error(err))
		_ = transport.Close()
		return
	}

	s.presenceMu.Lock()
	if old := s.presenceConns[identity.UserId]; old != nil {
		_ = old.Close()
	}
	s.presenceConns[identity.UserId] = transport
	s.presenceMu.Unlock()

	s.presence.Add(identity.UserId)
	applog.Info("User connected to presence endpoint",
		zap.Uint("userId", identity.UserId),
		zap.String("displayName", identity.DisplayName),
	)

	defer func() {
		s.presenceMu.Lock()
		if s.presenceConns[identity.UserId] == transport {
			delete(s.presenceConns, identity.UserId)
		}
		s.presenceMu.Unlock()

		s.presence.Remove(identity.UserId)
		applog.Info("User disconnected from presence endpoint",
			zap.Uint("userId", identity.UserId),
		)
	}()

	for {
		data, err := transport.ReadMessage()
		if err != nil {
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err = json.Unmarshal(data, &envelope); err != nil {
			applog.Debug("Ignoring unparsable presence frame", zap.Error(err))
			continue
		}

		if envelope.Type == "ping" {
			_ = transport.WriteMessage([]byte(`{"type":"pong"}`))
		}
	}
}
