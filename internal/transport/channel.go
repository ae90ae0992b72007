// Package transport keeps a duplex text channel to the relay server open.
//
// Upstream frames are raw utterance text, downstream frames are JSON
// {"text", "source"} objects. The channel reconnects after a fixed delay for
// as long as it runs. Nothing is queued while it is down: Send reports false
// and the utterance is lost.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the fixed pause between a close and the next dial.
const DefaultReconnectDelay = 1000 * time.Millisecond

// Dialer opens WebSocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Channel is a reconnecting WebSocket client.
type Channel struct {
	url            string
	dialer         Dialer
	reconnectDelay time.Duration
	logger         *slog.Logger

	onFrame func(Frame)
	onOpen  func()
	onClose func(error)

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer replaces the default gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.reconnectDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l.With("component", "transport") }
}

// OnFrame registers the handler for well-formed downstream frames.
func OnFrame(fn func(Frame)) Option {
	return func(c *Channel) { c.onFrame = fn }
}

// OnOpen registers a hook called after every successful dial.
func OnOpen(fn func()) Option {
	return func(c *Channel) { c.onOpen = fn }
}

// OnClose registers a hook called whenever an open connection drops.
func OnClose(fn func(error)) Option {
	return func(c *Channel) { c.onClose = fn }
}

// New creates a channel for url. It does not dial until Run.
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: DefaultReconnectDelay,
		logger:         slog.Default().With("component", "transport"),
		onFrame:        func(Frame) {},
		onOpen:         func() {},
		onClose:        func(error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run dials and serves the channel until ctx is done. A failed dial or a
// dropped connection is followed by another attempt after the reconnect
// delay; there is no retry limit.
func (c *Channel) Run(ctx context.Context) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("dial failed", "url", c.url, "error", err)
		} else {
			c.serve(ctx, conn)
		}

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		c.logger.Debug("reconnecting", "url", c.url)
	}
}

func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info("connected", "url", c.url)
	c.onOpen()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var readErr error
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			c.logger.Debug("dropping frame", "error", err)
			continue
		}
		c.onFrame(frame)
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	conn.Close()

	if ctx.Err() == nil {
		if IsClosed(readErr) {
			c.logger.Info("connection closed", "error", readErr)
		} else {
			c.logger.Warn("connection lost", "error", readErr)
		}
		c.onClose(readErr)
	}
}

// Send writes text upstream. It is a no-op returning false while the
// channel is not open.
func (c *Channel) Send(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// IsOpen reports whether a connection is currently established.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close drops the current connection, if any. Run keeps reconnecting until
// its context is cancelled.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// IsClosed reports whether err is a normal WebSocket close.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
