package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader returns the WebSocket upgrader for this server.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin accepts same-origin requests, non-browser clients and the
// configured CORS origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.corsOrigin == "*" || origin == s.corsOrigin
}

// bridgeWebSocketHandler serves the native channel to a remote bridge client.
func (s *Server) bridgeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "user_agent", r.UserAgent())

	if err := s.host.Serve(conn); err != nil {
		slog.Warn("WebSocket connection ended with error", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	slog.Info("WebSocket connection closed", "remote_addr", r.RemoteAddr)
}
