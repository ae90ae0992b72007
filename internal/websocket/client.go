package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/raihanakbr/voice-chat-relay/internal/provider"
	"github.com/raihanakbr/voice-chat-relay/internal/transport"
)

// LiveSession is a provider bound to one client connection, such as
// *provider.GeminiLive.
type LiveSession interface {
	provider.Provider
	Connect(ctx context.Context) error
	Close() error
}

// ClientConnection represents a client connected to our server
type ClientConnection struct {
	ID       string
	ClientWS *websocket.Conn
	// Live is the per-connection upstream session, tried before Relay's
	// providers. Nil when no live provider is configured.
	Live       LiveSession
	Relay      provider.Provider
	Mutex      sync.Mutex
	Done       chan struct{}
	SessionCtx *SessionContext

	inbox  chan string
	cancel context.CancelFunc
	ctx    context.Context
	logger *slog.Logger
}

// NewClientConnection creates a new client connection. The relay is the
// shared provider chain; live, when non-nil, is tried first.
func NewClientConnection(clientWS *websocket.Conn, connectionID string, store *SessionStore, relay *provider.Chain, live LiveSession, logger *slog.Logger) *ClientConnection {
	if connectionID == "" {
		connectionID = ulid.Make().String()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cc := &ClientConnection{
		ID:         connectionID,
		ClientWS:   clientWS,
		Live:       live,
		Done:       make(chan struct{}),
		SessionCtx: store.GetOrCreate(connectionID),
		inbox:      make(chan string, InboxSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With("client", connectionID),
	}
	cc.Relay = buildRelay(relay, live, logger)
	return cc
}

func buildRelay(relay *provider.Chain, live LiveSession, logger *slog.Logger) provider.Provider {
	switch {
	case live == nil && relay == nil:
		return nil
	case live == nil:
		return relay
	case relay == nil:
		chain, _ := provider.NewChainWithLogger(logger, live)
		return chain
	default:
		return relay.Prepend(live)
	}
}

// ConnectToGemini opens the live upstream session. A failure is logged and
// leaves the connection relaying through the fallback providers.
func (cc *ClientConnection) ConnectToGemini() error {
	if cc.Live == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(cc.ctx, GeminiConnectTimeout)
	defer cancel()

	if err := cc.Live.Connect(ctx); err != nil {
		cc.logger.Warn("live upstream unavailable, using fallback providers", "error", err)
		return fmt.Errorf("failed to connect to Gemini Live: %w", err)
	}
	cc.logger.Info("connected to Gemini Live")
	return nil
}

// Enqueue queues a user message for relay. It never blocks; a message that
// does not fit behind the in-flight ones is dropped.
func (cc *ClientConnection) Enqueue(text string) bool {
	select {
	case <-cc.Done:
		return false
	default:
	}

	select {
	case cc.inbox <- text:
		return true
	default:
		cc.logger.Warn("relay backlog full, dropping message", "text", text)
		return false
	}
}

// RelayLoop relays queued messages one at a time until the connection
// closes, so replies keep the order of the messages that caused them.
func (cc *ClientConnection) RelayLoop() {
	for {
		select {
		case <-cc.Done:
			return
		case text := <-cc.inbox:
			cc.HandleUserText(cc.ctx, text)
		}
	}
}

// HandleUserText relays one user message and writes the reply frame.
func (cc *ClientConnection) HandleUserText(ctx context.Context, raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		cc.logger.Debug("ignored empty message")
		return
	}

	cc.logger.Info("user said", "text", text)
	cc.SessionCtx.Append(Transcript{Role: RoleUser, Text: text, Timestamp: time.Now()})

	frame, latency := cc.relay(ctx, text)
	if ctx.Err() != nil {
		cc.logger.Debug("relay abandoned, client gone")
		return
	}

	cc.SessionCtx.Append(Transcript{
		Role:      RoleAssistant,
		Text:      frame.Text,
		Source:    frame.Source,
		LatencyMs: latency,
		Timestamp: time.Now(),
	})

	if err := cc.Send(frame); err != nil {
		cc.logger.Warn("error sending reply", "error", err)
	}
}

func (cc *ClientConnection) relay(ctx context.Context, text string) (transport.Frame, int64) {
	if cc.Relay == nil {
		cc.recordFailure("no providers configured")
		return transport.Frame{Text: AllProvidersFailedText, Source: provider.SourceNone}, 0
	}

	ctx, cancel := context.WithTimeout(ctx, RelayTimeout)
	defer cancel()

	reply, err := cc.Relay.Reply(ctx, &provider.Request{Text: text})
	if err != nil {
		cc.logger.Error("all providers failed", "error", err)
		cc.recordFailure(err.Error())
		return transport.Frame{Text: AllProvidersFailedText, Source: provider.SourceNone}, 0
	}

	cc.logger.Info("reply", "source", reply.Source, "latency_ms", reply.LatencyMs)
	return transport.Frame{Text: reply.Text, Source: reply.Source}, reply.LatencyMs
}

func (cc *ClientConnection) recordFailure(msg string) {
	cc.SessionCtx.Mutex.Lock()
	cc.SessionCtx.ErrorMessage = msg
	cc.SessionCtx.Mutex.Unlock()
}

// Send writes a frame to the client if its socket is still open.
func (cc *ClientConnection) Send(frame transport.Frame) error {
	data, err := transport.EncodeFrame(frame)
	if err != nil {
		return err
	}

	cc.Mutex.Lock()
	defer cc.Mutex.Unlock()
	if cc.ClientWS == nil {
		return nil
	}
	return cc.ClientWS.WriteMessage(websocket.TextMessage, data)
}

// Close closes the client connection
func (cc *ClientConnection) Close() {
	cc.Mutex.Lock()
	select {
	case <-cc.Done:
		cc.Mutex.Unlock()
		return
	default:
		close(cc.Done)
	}
	cc.cancel()

	if cc.ClientWS != nil {
		cc.ClientWS.Close()
		cc.ClientWS = nil
	}
	cc.Mutex.Unlock()

	if cc.Live != nil {
		if err := cc.Live.Close(); err != nil {
			cc.logger.Debug("error closing live upstream", "error", err)
		}
	}

	cc.SessionCtx.Mutex.Lock()
	if cc.SessionCtx.Status == StatusActive {
		cc.SessionCtx.Status = StatusCompleted
		endTime := time.Now()
		cc.SessionCtx.EndTime = &endTime
	}
	count := len(cc.SessionCtx.Transcripts)
	cc.SessionCtx.Mutex.Unlock()

	cc.logger.Info("client disconnected", "transcripts", count)
}
