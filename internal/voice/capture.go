package voice

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultRestartDelay is the pause before capture restarts itself after an
// error or a natural end.
const DefaultRestartDelay = 500 * time.Millisecond

// DefaultLang is the recognition locale.
const DefaultLang = "en-IN"

// CaptureState is the state of the speech capture machine.
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureStarting
	CaptureListening
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureStarting:
		return "starting"
	case CaptureListening:
		return "listening"
	default:
		return fmt.Sprintf("CaptureState(%d)", int(s))
	}
}

// bargeInTarget is the slice of Playback that capture needs.
type bargeInTarget interface {
	Speaking() bool
	Cancel(force bool)
}

// Capture wraps a continuous Recognizer and turns its callbacks into
// accepted utterances.
type Capture struct {
	rec          Recognizer
	clock        Clock
	sess         *Session
	playback     bargeInTarget
	lang         string
	restartDelay time.Duration
	logger       *slog.Logger

	state CaptureState
	// gen identifies the current recognition session. Callbacks and timers
	// carrying an older generation are stale.
	gen uint64
	// denied latches a permission error until the next manual Start.
	denied bool
	// suspended is set when a natural end was not followed by a restart
	// because playback was speaking.
	suspended bool
	restart   Timer

	onUtterance func(Utterance)
	onListening func(bool)
}

// NewCapture creates an idle capture machine.
func NewCapture(rec Recognizer, clock Clock, sess *Session, playback bargeInTarget, cfg Config) *Capture {
	cfg = cfg.withDefaults()
	return &Capture{
		rec:          rec,
		clock:        clock,
		sess:         sess,
		playback:     playback,
		lang:         cfg.Lang,
		restartDelay: cfg.RestartDelay,
		logger:       cfg.Logger.With("component", "voice.capture"),
		onUtterance:  func(Utterance) {},
		onListening:  func(bool) {},
	}
}

// OnUtterance registers the receiver of accepted final transcripts.
func (c *Capture) OnUtterance(fn func(Utterance)) {
	if fn != nil {
		c.onUtterance = fn
	}
}

// OnListening registers a hook for listening indicator changes.
func (c *Capture) OnListening(fn func(bool)) {
	if fn != nil {
		c.onListening = fn
	}
}

// State returns the current state.
func (c *Capture) State() CaptureState { return c.state }

// Active reports whether a recognition session is starting or running.
func (c *Capture) Active() bool { return c.state != CaptureIdle }

// Start begins capture. It is a no-op while a session is starting or
// running. A manual start clears the manual-stop flag and a previous
// permission denial.
func (c *Capture) Start() error {
	if c.state != CaptureIdle {
		return nil
	}
	c.sess.ManualStop = false
	c.denied = false
	return c.begin()
}

// Stop ends capture for good: no restart follows until the next Start.
func (c *Capture) Stop() {
	c.sess.ManualStop = true
	c.cancelRestart()
	c.suspended = false

	if c.state != CaptureIdle {
		c.rec.Stop()
		c.rec.Abort()
	}
	c.gen++
	c.setIdle()
	c.logger.Debug("capture stopped manually")
}

// Resume restarts a capture that ended while playback was speaking. It is a
// no-op otherwise.
func (c *Capture) Resume() {
	if !c.suspended {
		return
	}
	c.suspended = false
	if c.state != CaptureIdle || c.sess.ManualStop || c.denied {
		return
	}
	c.scheduleRestart("playback finished")
}

func (c *Capture) begin() error {
	c.cancelRestart()
	c.suspended = false
	c.gen++
	c.state = CaptureStarting

	cfg := RecognitionConfig{Continuous: true, InterimResults: true, Lang: c.lang}
	if err := c.rec.Start(cfg, c.events(c.gen)); err != nil {
		c.state = CaptureIdle
		return fmt.Errorf("start recognition: %w", err)
	}
	return nil
}

func (c *Capture) events(gen uint64) RecognitionEvents {
	return RecognitionEvents{
		OnStart: func() {
			if gen != c.gen {
				return
			}
			c.state = CaptureListening
			if !c.sess.Listening {
				c.sess.Listening = true
				c.onListening(true)
			}
		},
		OnSpeechStart: func() {
			if gen != c.gen {
				return
			}
			c.bargeIn("speech start")
		},
		OnResult: func(r RecognitionResult) { c.handleResult(gen, r) },
		OnError:  func(code string) { c.handleError(gen, code) },
		OnEnd:    func() { c.handleEnd(gen) },
	}
}

func (c *Capture) handleResult(gen uint64, r RecognitionResult) {
	if gen != c.gen {
		return
	}
	if !r.IsFinal {
		c.bargeIn("interim result")
		return
	}

	text := strings.TrimSpace(r.Transcript)
	if text == "" {
		return
	}
	if sameTranscript(text, c.sess.LastTranscript) {
		c.logger.Debug("duplicate transcript suppressed", "text", text)
		return
	}

	now := c.clock.Now()
	c.sess.LastTranscript = text
	c.sess.LastFinalAt = now
	c.onUtterance(Utterance{Text: text, IsFinal: true, Timestamp: now})
}

func (c *Capture) handleError(gen uint64, code string) {
	if gen != c.gen {
		return
	}
	c.logger.Warn("recognition error", "error", code)
	c.setIdle()

	if code == ErrorNotAllowed {
		c.denied = true
		return
	}
	if !c.sess.ManualStop {
		c.scheduleRestart("error")
	}
}

func (c *Capture) handleEnd(gen uint64) {
	if gen != c.gen {
		return
	}
	c.setIdle()

	if c.sess.ManualStop || c.denied {
		return
	}
	if c.playback.Speaking() {
		c.suspended = true
		c.logger.Debug("capture ended during playback, waiting")
		return
	}
	c.scheduleRestart("end")
}

func (c *Capture) bargeIn(reason string) {
	if !c.playback.Speaking() {
		return
	}
	c.logger.Info("barge-in, cancelling playback", "reason", reason)
	c.playback.Cancel(true)
}

func (c *Capture) scheduleRestart(reason string) {
	c.cancelRestart()
	gen := c.gen
	c.logger.Debug("scheduling restart", "reason", reason, "delay", c.restartDelay)
	c.restart = c.clock.AfterFunc(c.restartDelay, func() { c.restartFired(gen) })
}

func (c *Capture) restartFired(gen uint64) {
	if gen != c.gen {
		return
	}
	c.restart = nil
	if c.sess.ManualStop || c.denied || c.state != CaptureIdle {
		return
	}
	if err := c.begin(); err != nil {
		c.logger.Warn("restart failed", "error", err)
		c.scheduleRestart("restart failed")
	}
}

func (c *Capture) cancelRestart() {
	if c.restart != nil {
		c.restart.Stop()
		c.restart = nil
	}
}

func (c *Capture) setIdle() {
	c.state = CaptureIdle
	if c.sess.Listening {
		c.sess.Listening = false
		c.onListening(false)
	}
}
