package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const providerGemini = "gemini"

// DefaultLiveTurnTimeout bounds one live turn. It is shorter than a relay
// pass so a stalled session leaves time for the fallbacks.
const DefaultLiveTurnTimeout = 10 * time.Second

// WebsocketDialer opens upstream WebSocket connections. *websocket.Dialer
// satisfies it.
type WebsocketDialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Gemini Live wire messages.
type (
	livePart struct {
		Text string `json:"text,omitempty"`
	}

	liveContent struct {
		Role  string     `json:"role,omitempty"`
		Parts []livePart `json:"parts"`
	}

	liveSetup struct {
		Model             string       `json:"model"`
		GenerationConfig  liveGenCfg   `json:"generationConfig"`
		SystemInstruction *liveContent `json:"systemInstruction,omitempty"`
	}

	liveGenCfg struct {
		ResponseModalities []string `json:"responseModalities"`
	}

	liveClientContent struct {
		Turns        []liveContent `json:"turns"`
		TurnComplete bool          `json:"turnComplete"`
	}

	liveClientMessage struct {
		Setup         *liveSetup         `json:"setup,omitempty"`
		ClientContent *liveClientContent `json:"clientContent,omitempty"`
	}

	liveServerMessage struct {
		SetupComplete *struct{} `json:"setupComplete,omitempty"`
		ServerContent *struct {
			ModelTurn    *liveContent `json:"modelTurn,omitempty"`
			TurnComplete bool         `json:"turnComplete"`
			Interrupted  bool         `json:"interrupted"`
		} `json:"serverContent,omitempty"`
		GoAway *struct {
			TimeLeft string `json:"timeLeft"`
		} `json:"goAway,omitempty"`
	}
)

type liveEvent struct {
	text     string
	complete bool
}

// liveSession is one upstream connection and the channels its reader feeds.
type liveSession struct {
	conn   *websocket.Conn
	events chan liveEvent
	ready  chan struct{}
	closed chan struct{}

	readyOnce sync.Once
	closeOnce sync.Once
}

func (s *liveSession) markReady()  { s.readyOnce.Do(func() { close(s.ready) }) }
func (s *liveSession) markClosed() { s.closeOnce.Do(func() { close(s.closed) }) }

// GeminiLive relays turns over a Gemini Live WebSocket session. It belongs
// to a single client connection: Connect once, then Reply per message. When
// the session is down Reply fails with ErrNotConnected so a chain falls
// through to the next provider.
type GeminiLive struct {
	config *Config
	dialer WebsocketDialer
	logger *slog.Logger

	// turnMu keeps turns from interleaving on the session.
	turnMu sync.Mutex

	// mu guards session and serializes writes.
	mu      sync.Mutex
	session *liveSession
}

// NewGeminiLive creates an unconnected Gemini Live provider.
func NewGeminiLive(opts ...Option) (*GeminiLive, error) {
	cfg := defaultConfig()
	cfg.BaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	cfg.Model = "models/gemini-2.0-flash-live-001"
	cfg.Dialer = websocket.DefaultDialer
	cfg.Timeout = DefaultLiveTurnTimeout
	cfg.apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &GeminiLive{
		config: cfg,
		dialer: cfg.Dialer,
		logger: cfg.Logger.With("component", "provider.gemini"),
	}, nil
}

// Name implements Provider.
func (g *GeminiLive) Name() string { return providerGemini }

// Connect dials the Live endpoint and sends the session setup.
func (g *GeminiLive) Connect(ctx context.Context) error {
	u, err := url.Parse(g.config.BaseURL)
	if err != nil {
		return WrapError(providerGemini, fmt.Errorf("parse URL: %w", err))
	}
	q := u.Query()
	q.Set("key", g.config.APIKey)
	u.RawQuery = q.Encode()

	g.logger.Debug("connecting", "host", u.Host, "model", g.config.Model)

	conn, _, err := g.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return WrapError(providerGemini, fmt.Errorf("dial: %w", err))
	}

	setup := liveClientMessage{Setup: &liveSetup{
		Model:            g.config.Model,
		GenerationConfig: liveGenCfg{ResponseModalities: []string{"TEXT"}},
	}}
	if g.config.SystemPrompt != "" {
		setup.Setup.SystemInstruction = &liveContent{Parts: []livePart{{Text: g.config.SystemPrompt}}}
	}
	if err := conn.WriteJSON(setup); err != nil {
		conn.Close()
		return WrapError(providerGemini, fmt.Errorf("send setup: %w", err))
	}

	s := &liveSession{
		conn:   conn,
		events: make(chan liveEvent, 64),
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}

	g.mu.Lock()
	old := g.session
	g.session = s
	g.mu.Unlock()
	if old != nil {
		old.conn.Close()
	}

	go g.listen(s)
	g.logger.Info("connected to Gemini Live")
	return nil
}

// listen reads upstream messages and feeds the session's event channel.
func (g *GeminiLive) listen(s *liveSession) {
	defer func() {
		s.markClosed()
		s.conn.Close()
		g.mu.Lock()
		if g.session == s {
			g.session = nil
		}
		g.mu.Unlock()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			g.logger.Debug("upstream read ended", "error", err)
			return
		}

		var msg liveServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.Warn("unparseable upstream message", "error", err)
			continue
		}

		switch {
		case msg.SetupComplete != nil:
			s.markReady()
		case msg.ServerContent != nil:
			sc := msg.ServerContent
			if sc.ModelTurn != nil {
				for _, part := range sc.ModelTurn.Parts {
					if part.Text != "" {
						g.emit(s, liveEvent{text: part.Text})
					}
				}
			}
			if sc.TurnComplete || sc.Interrupted {
				g.emit(s, liveEvent{complete: true})
			}
		case msg.GoAway != nil:
			g.logger.Warn("upstream is going away", "time_left", msg.GoAway.TimeLeft)
		}
	}
}

func (g *GeminiLive) emit(s *liveSession, ev liveEvent) {
	select {
	case s.events <- ev:
	default:
		g.logger.Warn("dropping upstream event, nobody waiting")
	}
}

// isOpen reports whether the upstream session is connected.
func (g *GeminiLive) isOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session != nil
}

// Reply implements Provider. It sends one user turn and collects the model's
// text until the turn completes or the turn timeout passes.
func (g *GeminiLive) Reply(ctx context.Context, req *Request) (*Reply, error) {
	g.turnMu.Lock()
	defer g.turnMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	g.mu.Lock()
	s := g.session
	g.mu.Unlock()
	if s == nil {
		return nil, WrapError(providerGemini, ErrNotConnected)
	}

	start := time.Now()

	select {
	case <-s.ready:
	case <-s.closed:
		return nil, WrapError(providerGemini, ErrNotConnected)
	case <-ctx.Done():
		return nil, WrapError(providerGemini, ctx.Err())
	}

	// Leftovers from an abandoned turn.
	for drained := false; !drained; {
		select {
		case <-s.events:
		default:
			drained = true
		}
	}

	turn := liveClientMessage{ClientContent: &liveClientContent{
		Turns:        []liveContent{{Role: "user", Parts: []livePart{{Text: req.Text}}}},
		TurnComplete: true,
	}}
	g.mu.Lock()
	err := s.conn.WriteJSON(turn)
	g.mu.Unlock()
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("send turn: %w", err))
	}

	var text strings.Builder
	for {
		select {
		case ev := <-s.events:
			if ev.complete {
				if text.Len() == 0 {
					return nil, WrapError(providerGemini, ErrEmptyReply)
				}
				return &Reply{
					Text:      text.String(),
					Source:    SourceGemini,
					LatencyMs: time.Since(start).Milliseconds(),
				}, nil
			}
			text.WriteString(ev.text)
		case <-s.closed:
			return nil, WrapError(providerGemini, ErrNotConnected)
		case <-ctx.Done():
			// The session may still deliver this turn later; drop it so the
			// next message falls back instead of reading a stale answer.
			g.Close()
			return nil, WrapError(providerGemini, ctx.Err())
		}
	}
}

// Close ends the upstream session. Safe to call more than once.
func (g *GeminiLive) Close() error {
	g.mu.Lock()
	s := g.session
	g.session = nil
	if s == nil {
		g.mu.Unlock()
		return nil
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	g.mu.Unlock()

	s.markClosed()
	return s.conn.Close()
}

var _ Provider = (*GeminiLive)(nil)
