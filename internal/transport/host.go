package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/gorilla/websocket"
)

// Keepalive timing for hosted connections.
const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Host serves a bridge.Channel to remote Clients.
type Host struct {
	channel bridge.Channel
	logger  *slog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the host logger.
func WithHostLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHost creates a host executing calls on ch.
func NewHost(ch bridge.Channel, opts ...HostOption) *Host {
	h := &Host{channel: ch, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// hostConn is the per-connection state of a Host.
type hostConn struct {
	host    *Host
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu    sync.Mutex
	scans map[string]struct{}
}

// Serve handles requests on conn until it is closed. Callbacks that resolve
// after the connection is gone are dropped. A scan still pending when the
// peer disconnects is cancelled on the channel.
func (h *Host) Serve(conn *websocket.Conn) error {
	hc := &hostConn{host: h, conn: conn, scans: make(map[string]struct{})}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go hc.keepalive(stop)

	defer hc.cancelOrphanedScans()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "error", err)
				return err
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		messagesTotal.WithLabelValues("host", "received").Inc()
		hc.handle(data)
	}
}

func (hc *hostConn) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hc.writeMu.Lock()
			err := hc.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait))
			hc.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (hc *hostConn) handle(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		hc.send(Response{Status: StatusError, Payload: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if req.Args == nil {
		req.Args = []any{}
	}

	hc.host.logger.Debug("Request received", "id", req.ID, "target", req.Target, "operation", req.Operation)

	if req.Operation == bridge.OpScan {
		hc.mu.Lock()
		hc.scans[req.ID] = struct{}{}
		hc.mu.Unlock()
	}
	pendingRequests.WithLabelValues("host").Inc()

	var once sync.Once
	resolve := func(status string, payload any) {
		once.Do(func() {
			pendingRequests.WithLabelValues("host").Dec()
			hc.mu.Lock()
			delete(hc.scans, req.ID)
			hc.mu.Unlock()
			hc.send(Response{ID: req.ID, Status: status, Payload: payload})
		})
	}

	hc.host.channel.Execute(
		func(result any) { resolve(StatusOK, result) },
		func(errPayload any) { resolve(StatusError, errPayload) },
		req.Target, req.Operation, req.Args,
	)
}

func (hc *hostConn) send(resp Response) {
	hc.writeMu.Lock()
	defer hc.writeMu.Unlock()
	_ = hc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := hc.conn.WriteJSON(resp); err != nil {
		hc.host.logger.Debug("Dropping response", "id", resp.ID, "error", err)
		return
	}
	messagesTotal.WithLabelValues("host", "sent").Inc()
}

func (hc *hostConn) cancelOrphanedScans() {
	hc.mu.Lock()
	n := len(hc.scans)
	hc.mu.Unlock()
	if n == 0 {
		return
	}
	hc.host.logger.Info("Peer disconnected during scan, cancelling", "scans", n)
	hc.host.channel.Execute(func(any) {}, func(any) {}, bridge.Target, bridge.OpCancel, []any{})
}
