package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/config"
	"github.com/gkqls2420/projectGM-server/internal/matchmaking"
	"github.com/gkqls2420/projectGM-server/internal/room"
	"github.com/gkqls2420/projectGM-server/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server is the websocket front of the match host. Each connection gets a
// session client; messages are dispatched to the matchmaker and rooms.
type Server struct {
	logger     *zap.Logger
	cfg        *config.Config
	catalog    *catalog.Catalog
	sessions   *session.Manager
	rooms      *room.Manager
	matchmaker *matchmaking.Matchmaker

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New wires the server over its collaborators.
func New(logger *zap.Logger, cfg *config.Config, cat *catalog.Catalog, sessions *session.Manager, rooms *room.Manager, matchmaker *matchmaking.Matchmaker) *Server {
	s := &Server{
		logger:     logger,
		cfg:        cfg,
		catalog:    cat,
		sessions:   sessions,
		rooms:      rooms,
		matchmaker: matchmaker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"online_players": s.sessions.Count(),
		"live_rooms":     s.rooms.Count(),
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := session.NewClient(uuid.NewString(), conn, s.logger)
	s.sessions.Add(client)
	s.logger.Info("client connected",
		zap.String("client_id", client.ID),
		zap.Int("online", s.sessions.Count()),
	)

	go client.WritePump()
	go client.ReadPump(
		func(payload map[string]any) { s.handleMessage(client, payload) },
		func() { s.handleClientGone(client) },
	)
}

// handleClientGone tears down everything a vanished client was part of:
// queue entries, an active match (forfeited), and the session registry.
func (s *Server) handleClientGone(client *session.Client) {
	s.matchmaker.Leave(client.ID)
	s.rooms.HandleDisconnect(client.ID)
	s.sessions.Remove(client.ID)
	s.logger.Info("client disconnected",
		zap.String("client_id", client.ID),
		zap.Int("online", s.sessions.Count()),
	)
	s.broadcastServerInfo()
}

// broadcastServerInfo pushes the lobby snapshot to every connected client.
func (s *Server) broadcastServerInfo() {
	s.sessions.Broadcast(s.serverInfo())
}

func (s *Server) serverInfo() map[string]any {
	return map[string]any{
		"message_type":   "server_info",
		"online_players": s.sessions.Count(),
		"live_rooms":     s.rooms.Count(),
		"queue_info":     s.matchmaker.QueueInfo(),
	}
}
