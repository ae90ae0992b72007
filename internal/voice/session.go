package voice

import (
	"strings"
	"time"
)

// Session is the state shared by capture and playback for one client. It is
// owned by the Coordinator and only touched on the loop.
type Session struct {
	Listening  bool
	Speaking   bool
	ManualStop bool

	// LastTranscript is the last accepted final transcript, used for
	// duplicate suppression.
	LastTranscript string
	// LastFinalAt is when LastTranscript was accepted. Zero until the user
	// has said something.
	LastFinalAt time.Time
}

// Utterance is a finalized user transcript.
type Utterance struct {
	Text      string
	IsFinal   bool
	Timestamp time.Time
}

// ForgetTranscript clears the duplicate-suppression memory.
func (s *Session) ForgetTranscript() {
	s.LastTranscript = ""
}

// normalizeTranscript folds case and whitespace runs for comparison.
func normalizeTranscript(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// sameTranscript reports whether a and b are equal modulo case and whitespace.
func sameTranscript(a, b string) bool {
	return normalizeTranscript(a) == normalizeTranscript(b)
}
