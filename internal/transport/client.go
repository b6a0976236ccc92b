package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/bridge"
	"github.com/MeKo-Tech/scanbridge/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type pendingCall struct {
	operation string
	onSuccess bridge.SuccessFunc
	onError   bridge.ErrorFunc
}

// Client is a bridge.Channel that forwards calls to a remote Host.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]pendingCall
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Dial connects to a Host at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{
		"User-Agent": []string{version.UserAgent()},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection and starts reading responses.
func NewClient(conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:    conn,
		logger:  slog.Default(),
		pending: make(map[string]pendingCall),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Execute sends the call and resolves the callbacks when the matching
// response arrives. Transport failures are reported through onError.
func (c *Client) Execute(onSuccess bridge.SuccessFunc, onError bridge.ErrorFunc, target, operation string, args []any) {
	if onSuccess == nil {
		onSuccess = func(any) {}
	}
	if onError == nil {
		onError = func(any) {}
	}
	if args == nil {
		args = []any{}
	}

	req := Request{ID: uuid.NewString(), Target: target, Operation: operation, Args: args}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		onError(ErrConnectionClosed.Error())
		return
	}
	c.pending[req.ID] = pendingCall{operation: operation, onSuccess: onSuccess, onError: onError}
	pendingRequests.WithLabelValues("client").Inc()
	c.mu.Unlock()

	if err := c.write(req); err != nil {
		if call, ok := c.take(req.ID); ok {
			c.logger.Warn("Failed to send request", "id", req.ID, "operation", operation, "error", err)
			call.onError(fmt.Sprintf("send %s: %v", operation, err))
		}
		return
	}
	messagesTotal.WithLabelValues("client", "sent").Inc()
	c.logger.Debug("Request sent", "id", req.ID, "operation", operation)
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Done is closed once the connection has stopped reading.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close shuts the connection down and fails every pending call with
// "connection closed".
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(req)
}

func (c *Client) take(id string) (pendingCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		pendingRequests.WithLabelValues("client").Dec()
	}
	return call, ok
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.failPending()

	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !c.isClosed() {
				c.logger.Warn("Connection read failed", "error", err)
			}
			return
		}
		messagesTotal.WithLabelValues("client", "received").Inc()

		call, ok := c.take(resp.ID)
		if !ok {
			c.logger.Warn("Response for unknown request", "id", resp.ID, "status", resp.Status)
			continue
		}
		if resp.Status == StatusOK {
			call.onSuccess(resp.Payload)
		} else {
			call.onError(resp.Payload)
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) failPending() {
	c.mu.Lock()
	c.closed = true
	calls := c.pending
	c.pending = make(map[string]pendingCall)
	pendingRequests.WithLabelValues("client").Sub(float64(len(calls)))
	c.mu.Unlock()

	for id, call := range calls {
		c.logger.Debug("Failing pending request", "id", id, "operation", call.operation)
		call.onError(ErrConnectionClosed.Error())
	}
}
