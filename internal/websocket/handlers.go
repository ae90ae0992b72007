package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/raihanakbr/voice-chat-relay/internal/provider"
	"github.com/raihanakbr/voice-chat-relay/internal/transport"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server accepts client connections and relays their messages.
type Server struct {
	// Relay is the shared fallback chain. May be nil when only a live
	// provider is configured.
	Relay *provider.Chain
	// NewLive creates the per-connection live session. Nil disables it.
	NewLive func() (LiveSession, error)
	// StaticDir, when set, is served on / for non-WebSocket requests.
	StaticDir string

	Store  *SessionStore
	Logger *slog.Logger
}

// NewServer creates a server with an empty session store.
func NewServer(relay *provider.Chain, newLive func() (LiveSession, error), logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "relay")
	return &Server{
		Relay:   relay,
		NewLive: newLive,
		Store:   NewSessionStore(logger),
		Logger:  logger,
	}
}

// Routes registers the WebSocket and REST endpoints on a dedicated mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	// WebSocket endpoint
	mux.HandleFunc("/ws", s.HandleWebSocketConnection)
	// REST API endpoints
	mux.Handle("/api/session", otelhttp.NewHandler(http.HandlerFunc(s.GetSessionHandler), "api.session"))
	mux.Handle("/api/transcripts", otelhttp.NewHandler(http.HandlerFunc(s.GetTranscriptsHandler), "api.transcripts"))
	// Browsers connect to the page origin; upgrade there too.
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.HandleWebSocketConnection(w, r)
		return
	}
	if s.StaticDir == "" {
		http.NotFound(w, r)
		return
	}
	http.FileServer(http.Dir(s.StaticDir)).ServeHTTP(w, r)
}

// HandleWebSocketConnection handles a new WebSocket connection from a client
func (s *Server) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	clientWS, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	connectionID := r.URL.Query().Get("connection_id")

	var live LiveSession
	if s.NewLive != nil {
		live, err = s.NewLive()
		if err != nil {
			s.Logger.Warn("live provider unavailable", "error", err)
			live = nil
		}
	}

	client := NewClientConnection(clientWS, connectionID, s.Store, s.Relay, live, s.Logger)
	s.Logger.Info("new client connected", "client", client.ID)

	go func() {
		// Gemini is optional: a failed dial only means the chain starts at
		// the next provider.
		client.ConnectToGemini()
		client.RelayLoop()
	}()

	go func() {
		defer client.Close()

		for {
			messageType, data, err := clientWS.ReadMessage()
			if err != nil {
				if !transport.IsClosed(err) {
					s.Logger.Warn("error reading from client", "client", client.ID, "error", err)
					client.SessionCtx.Mutex.Lock()
					client.SessionCtx.Status = StatusError
					client.SessionCtx.ErrorMessage = err.Error()
					end := time.Now()
					client.SessionCtx.EndTime = &end
					client.SessionCtx.Mutex.Unlock()
				}
				return
			}

			switch messageType {
			case websocket.TextMessage:
				client.Enqueue(string(data))
			default:
				s.Logger.Debug("ignoring non-text message", "client", client.ID, "type", messageType)
			}
		}
	}()
}

// API endpoint handlers

// GetSessionHandler retrieves session information and transcripts
func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Snapshot())
}

// GetTranscriptsHandler retrieves only the transcripts for a session
func (s *Server) GetTranscriptsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	snap := session.Snapshot()
	response := map[string]interface{}{
		"connection_id": snap.ID,
		"transcripts":   snap.Transcripts,
		"count":         len(snap.Transcripts),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*SessionContext, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	connectionID := r.URL.Query().Get("connection_id")
	if connectionID == "" {
		http.Error(w, "connection_id parameter is required", http.StatusBadRequest)
		return nil, false
	}

	session, exists := s.Store.Get(connectionID)
	if !exists {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
