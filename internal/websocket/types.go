package websocket

import (
	"log/slog"
	"sync"
	"time"
)

// Transcript roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Transcript is one message exchanged on a connection.
type Transcript struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext maintains persistent state for a connection
type SessionContext struct {
	ID           string       `json:"id"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      *time.Time   `json:"end_time,omitempty"`
	Transcripts  []Transcript `json:"transcripts"`
	Status       string       `json:"status"` // "active", "completed", "error"
	ErrorMessage string       `json:"error_message,omitempty"`
	Mutex        sync.RWMutex `json:"-"`
}

// Append records a transcript entry.
func (s *SessionContext) Append(t Transcript) {
	s.Mutex.Lock()
	s.Transcripts = append(s.Transcripts, t)
	s.Mutex.Unlock()
}

// SessionSnapshot is a lock-free copy of a SessionContext.
type SessionSnapshot struct {
	ID           string       `json:"id"`
	StartTime    time.Time    `json:"start_time"`
	EndTime      *time.Time   `json:"end_time,omitempty"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Transcripts  []Transcript `json:"transcripts"`
}

// Snapshot copies the session under its lock.
func (s *SessionContext) Snapshot() SessionSnapshot {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()

	transcripts := make([]Transcript, len(s.Transcripts))
	copy(transcripts, s.Transcripts)
	return SessionSnapshot{
		ID:           s.ID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Status:       s.Status,
		ErrorMessage: s.ErrorMessage,
		Transcripts:  transcripts,
	}
}

// SessionStore holds sessions by connection ID for the life of the process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionContext
	logger   *slog.Logger
}

// NewSessionStore creates an empty store.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*SessionContext),
		logger:   logger,
	}
}

// GetOrCreate retrieves an existing session or creates a new one. A resumed
// session that had ended is reactivated with its transcripts kept.
func (st *SessionStore) GetOrCreate(connectionID string) *SessionContext {
	st.mu.Lock()
	defer st.mu.Unlock()

	if session, exists := st.sessions[connectionID]; exists {
		session.Mutex.Lock()
		if session.Status == StatusCompleted || session.Status == StatusError {
			session.Status = StatusActive
			session.EndTime = nil
			session.ErrorMessage = ""
		}
		session.Mutex.Unlock()
		st.logger.Info("resumed session", "client", connectionID)
		return session
	}

	session := &SessionContext{
		ID:          connectionID,
		StartTime:   time.Now(),
		Status:      StatusActive,
		Transcripts: make([]Transcript, 0),
	}
	st.sessions[connectionID] = session

	st.logger.Info("created session", "client", connectionID)
	return session
}

// Get looks up a session.
func (st *SessionStore) Get(connectionID string) (*SessionContext, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	session, ok := st.sessions[connectionID]
	return session, ok
}
