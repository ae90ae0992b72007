// Package host provides console stand-ins for the speech services the voice
// loop drives: typed lines for recognition, espeak-ng for synthesis, and a
// terminal message log.
package host

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/raihanakbr/voice-chat-relay/internal/voice"
)

// ErrBusy is returned by Start while a recognition session is running.
var ErrBusy = errors.New("host: recognition already started")

// Poster runs callbacks on the voice loop. *voice.Loop satisfies it.
type Poster interface {
	Post(fn func()) bool
}

// Line prefixes understood by LineRecognizer.
const (
	InterimPrefix = "~"
	SpeechLine    = "!speech"
	DenyLine      = "!deny"
	EndLine       = "!end"
	ErrorPrefix   = "!error "
)

// LineRecognizer turns typed lines into recognition events. A plain line is
// a final result, "~text" an interim result, "!speech" the start of speech,
// "!deny" a permission error, "!error code" any other error and "!end" a
// natural end of the session.
type LineRecognizer struct {
	loop   Poster
	logger *slog.Logger

	mu      sync.Mutex
	session *voice.RecognitionEvents
}

// NewLineRecognizer creates a recognizer that posts events to loop.
func NewLineRecognizer(loop Poster, logger *slog.Logger) *LineRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineRecognizer{
		loop:   loop,
		logger: logger.With("component", "host.recognizer"),
	}
}

// Start implements voice.Recognizer.
func (r *LineRecognizer) Start(cfg voice.RecognitionConfig, events voice.RecognitionEvents) error {
	r.mu.Lock()
	if r.session != nil {
		r.mu.Unlock()
		return ErrBusy
	}
	r.session = &events
	r.mu.Unlock()

	r.logger.Debug("recognition started", "lang", cfg.Lang)
	r.loop.Post(events.OnStart)
	return nil
}

// Stop implements voice.Recognizer.
func (r *LineRecognizer) Stop() { r.end() }

// Abort implements voice.Recognizer.
func (r *LineRecognizer) Abort() { r.end() }

func (r *LineRecognizer) end() {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()
	if s != nil {
		r.loop.Post(s.OnEnd)
	}
}

// Listening reports whether a session is running.
func (r *LineRecognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Feed delivers one typed line. Lines typed while no session runs are
// dropped, as speech is with the mic off. It reports whether the line was
// consumed.
func (r *LineRecognizer) Feed(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return false
	}

	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		r.logger.Debug("mic off, line dropped", "line", line)
		return false
	}

	switch {
	case line == SpeechLine:
		r.loop.Post(s.OnSpeechStart)
	case line == DenyLine:
		r.fail(s, voice.ErrorNotAllowed)
	case line == EndLine:
		r.end()
	case strings.HasPrefix(line, ErrorPrefix):
		r.fail(s, strings.TrimSpace(strings.TrimPrefix(line, ErrorPrefix)))
	case strings.HasPrefix(line, InterimPrefix):
		res := voice.RecognitionResult{Transcript: strings.TrimPrefix(line, InterimPrefix)}
		r.loop.Post(func() { s.OnResult(res) })
	default:
		res := voice.RecognitionResult{Transcript: line, IsFinal: true}
		r.loop.Post(func() { s.OnResult(res) })
	}
	return true
}

// fail reports an error and ends the session, as browsers do.
func (r *LineRecognizer) fail(s *voice.RecognitionEvents, code string) {
	r.loop.Post(func() { s.OnError(code) })
	r.end()
}

var _ voice.Recognizer = (*LineRecognizer)(nil)
