// Package transport carries bridge Channel calls over a websocket. A Client
// implements bridge.Channel on the calling side; a Host serves any
// bridge.Channel (usually the native plugin) on the remote side. Calls and
// results travel as JSON envelopes correlated by request id.
package transport

import "errors"

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrConnectionClosed is reported for calls still pending when the connection ends.
var ErrConnectionClosed = errors.New("connection closed")

// Request is one Execute call.
type Request struct {
	ID        string `json:"id"`
	Target    string `json:"target"`
	Operation string `json:"operation"`
	Args      []any  `json:"args"`
}

// Response resolves the Request with the same ID.
type Response struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
}
